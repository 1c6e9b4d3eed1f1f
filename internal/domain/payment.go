package domain

// PaymentOutcome tags the variants of a PaymentResult.
type PaymentOutcome string

const (
	PaymentSucceeded PaymentOutcome = "success"
	PaymentCancelled PaymentOutcome = "cancelled"
	PaymentFailed    PaymentOutcome = "failed"
)

// Cancellation reasons. A capture attempt against an abandoned approval
// window reports window_closed rather than a hard failure.
const (
	CancelReasonUser         = "user_cancelled"
	CancelReasonWindowClosed = "window_closed"
)

// PaymentResult is the tagged outcome of a payment attempt. Exactly the
// fields of the tagged variant are populated: Success carries the capture
// references, Cancelled carries a reason, Failed carries the error.
type PaymentResult struct {
	Outcome PaymentOutcome

	// Success
	OrderID     string
	CaptureID   string
	PayerEmail  string
	PayerName   string
	AmountCents int64
	Raw         map[string]any

	// Cancelled
	Reason string

	// Failed
	Err error
}

// Succeeded reports whether the payment captured funds.
func (r PaymentResult) Succeeded() bool { return r.Outcome == PaymentSucceeded }

// Cancelled reports whether the payer abandoned the attempt.
func (r PaymentResult) Cancelled() bool { return r.Outcome == PaymentCancelled }

// Failed reports whether the attempt ended in an error.
func (r PaymentResult) Failed() bool { return r.Outcome == PaymentFailed }

// SuccessResult builds the success variant.
func SuccessResult(orderID, captureID, payerEmail, payerName string, amountCents int64, raw map[string]any) PaymentResult {
	return PaymentResult{
		Outcome:     PaymentSucceeded,
		OrderID:     orderID,
		CaptureID:   captureID,
		PayerEmail:  payerEmail,
		PayerName:   payerName,
		AmountCents: amountCents,
		Raw:         raw,
	}
}

// CancelledResult builds the cancelled variant.
func CancelledResult(reason string) PaymentResult {
	if reason == "" {
		reason = CancelReasonUser
	}
	return PaymentResult{Outcome: PaymentCancelled, Reason: reason}
}

// FailedResult builds the failed variant.
func FailedResult(err error) PaymentResult {
	return PaymentResult{Outcome: PaymentFailed, Err: err}
}
