package domain

// Kind identifies a lifecycle entity family. Each kind owns one transition
// table and the table is the single authority on which status moves are legal;
// no call site may special-case a transition.
type Kind string

const (
	KindOrder        Kind = "order"
	KindMeal         Kind = "meal"
	KindSubscription Kind = "subscription"
)

// transitions maps (kind, current status) to the set of legal next statuses.
// Terminal states are present with empty successor sets. A status absent from
// its kind's map has no successors at all. Self-transitions are deliberately
// not listed: a repeated status request must surface as a conflict, not be
// swallowed as a silent success.
var transitions = map[Kind]map[string]map[string]bool{
	KindOrder: {
		string(OrderStatusPending):   {string(OrderStatusConfirmed): true, string(OrderStatusCancelled): true},
		string(OrderStatusConfirmed): {string(OrderStatusPreparing): true, string(OrderStatusCancelled): true},
		string(OrderStatusPreparing): {string(OrderStatusReady): true, string(OrderStatusCancelled): true},
		string(OrderStatusReady):     {string(OrderStatusDelivered): true, string(OrderStatusCancelled): true},
		string(OrderStatusDelivered): {},
		string(OrderStatusCancelled): {},
	},
	KindMeal: {
		string(MealStatusScheduled): {string(MealStatusPreparing): true, string(MealStatusCancelled): true, string(MealStatusSkipped): true},
		string(MealStatusPreparing): {string(MealStatusReady): true, string(MealStatusCancelled): true},
		string(MealStatusReady):     {string(MealStatusDelivered): true, string(MealStatusCancelled): true},
		string(MealStatusDelivered): {},
		string(MealStatusCancelled): {},
		string(MealStatusSkipped):   {},
	},
	KindSubscription: {
		string(SubscriptionStatusPending):   {string(SubscriptionStatusActive): true, string(SubscriptionStatusCancelled): true},
		string(SubscriptionStatusActive):    {string(SubscriptionStatusPaused): true, string(SubscriptionStatusCancelled): true, string(SubscriptionStatusExpired): true},
		string(SubscriptionStatusPaused):    {string(SubscriptionStatusActive): true, string(SubscriptionStatusCancelled): true},
		string(SubscriptionStatusCancelled): {},
		string(SubscriptionStatusExpired):   {},
	},
}

// IsLegal reports whether from→to is a registered edge for the kind.
func IsLegal(kind Kind, from, to string) bool {
	next := transitions[kind][from]
	return next != nil && next[to]
}

// ValidateTransition returns a typed error naming both states when the move
// is not allowed.
func ValidateTransition(kind Kind, from, to string) error {
	if !IsLegal(kind, from, to) {
		return &IllegalTransitionError{Kind: kind, From: from, To: to}
	}
	return nil
}

// IsTerminal reports whether the status has no outgoing edges.
func IsTerminal(kind Kind, status string) bool {
	next, ok := transitions[kind][status]
	return ok && len(next) == 0
}

// KnownStatus reports whether the status exists in the kind's table at all.
func KnownStatus(kind Kind, status string) bool {
	_, ok := transitions[kind][status]
	return ok
}
