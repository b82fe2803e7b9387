package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusFailed, true},
		{OrderStatusPending, OrderStatusCompleted, false},
		{OrderStatusProcessing, OrderStatusCompleted, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusFailed, true},
		{OrderStatusProcessing, OrderStatusPending, false},
		{OrderStatusCompleted, OrderStatusRefunded, true},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusProcessing, false},
		{OrderStatusFailed, OrderStatusProcessing, false},
		{OrderStatusRefunded, OrderStatusCompleted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestOrderStatusPackable(t *testing.T) {
	for _, status := range validOrderStatuses {
		want := status == OrderStatusProcessing || status == OrderStatusCompleted
		if status.IsPackable() != want {
			t.Fatalf("status %s packable mismatch", status)
		}
	}
}

func TestParseHelpers(t *testing.T) {
	if _, err := ParseMaterialUnit("bottle"); err != nil {
		t.Fatalf("bottle should parse: %v", err)
	}
	if _, err := ParseMaterialUnit("kg"); err == nil {
		t.Fatalf("kg is not a supported unit")
	}
	if got, err := ParseStockMovementType("PACKAGING"); err != nil || got != StockMovementPackaging {
		t.Fatalf("unexpected movement parse %q %v", got, err)
	}
	if _, err := ParsePackagingDeductionType("per_box"); err == nil {
		t.Fatalf("per_box is not a deduction type")
	}
	if got, err := ParsePackagingScope("specific_products"); err != nil || got != PackagingScopeSpecificProducts {
		t.Fatalf("unexpected scope parse %q %v", got, err)
	}
	if _, err := ParseOrderStatus("shipped"); err == nil {
		t.Fatalf("shipped is not an order status")
	}
	if _, err := ParseOutboxEventType(string(EventOrderPacked)); err != nil {
		t.Fatalf("order_packed should parse: %v", err)
	}
}

func TestPromoReasonMessages(t *testing.T) {
	for _, reason := range []PromoRejectReason{PromoReasonNotFound, PromoReasonNotYetActive, PromoReasonExpired, PromoReasonNotEligible} {
		if reason.Message() == "" {
			t.Fatalf("reason %s has no message", reason)
		}
	}
	if PromoReasonNone.Message() != "" {
		t.Fatalf("empty reason should have no message")
	}
}
