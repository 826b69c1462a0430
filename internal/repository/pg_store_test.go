package repository

import (
	"strings"
	"testing"
)

func TestListEligibleQueryFiltersUnusableUsers(t *testing.T) {
	for _, clause := range []string{"WHERE auto_trade", "trade_amount > 0", "ORDER BY tier DESC, id ASC"} {
		if !strings.Contains(listEligibleQuery, clause) {
			t.Fatalf("eligibility query missing %q:\n%s", clause, listEligibleQuery)
		}
	}
}
