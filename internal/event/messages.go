package event

// Topic names shared by this service and the external verify/rollback
// workers. The transport only promises at-least-once delivery, so every
// consumer has to tolerate duplicates.
const (
	TopicVerifyRequest   = "purchase.verify.request"
	TopicVerifyResult    = "purchase.verify.result"
	TopicRollbackRequest = "purchase.rollback.request"
	TopicRollbackResult  = "purchase.rollback.result"
)

// ReasonAmountMismatch is the reason prefix the verifier publishes when the
// paid amount does not match the gateway's record. The coordinator keys its
// rollback decision on it, so producer and consumer share the constant.
const ReasonAmountMismatch = "amount mismatch"

type VerifyRequest struct {
	PurchaseID uint64 `json:"purchaseId"`
	ChargeUID  string `json:"chargeUid"`
	PaidAmount int64  `json:"paidAmount"`
}

type VerifyResult struct {
	PurchaseID uint64 `json:"purchaseId"`
	Valid      bool   `json:"valid"`
	Reason     string `json:"reason,omitempty"`
}

type RollbackRequest struct {
	PurchaseID uint64 `json:"purchaseId"`
	ChargeUID  string `json:"chargeUid"`
	PaidAmount int64  `json:"paidAmount"`
	ProductID  uint64 `json:"productId"`
}

type RollbackResult struct {
	PurchaseID uint64 `json:"purchaseId"`
	Succeeded  bool   `json:"succeeded"`
	Reason     string `json:"reason,omitempty"`
}
