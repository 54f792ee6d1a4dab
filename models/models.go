package models

// QueuedResponse is returned with 202 when the upstream service is still
// processing after the poll budget is spent. Clients should retry later.
type QueuedResponse struct {
	Queued  bool   `json:"queued"`
	Message string `json:"message"`
}

// QueuedMessage is the message body paired with QueuedResponse.
const QueuedMessage = "Prediction queued, try again later"

// ErrorResponse is the error envelope for every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// QueuedSentinel mirrors the upstream service's "still queued" payload.
// The discriminator is the queued field; the same object may arrive as a
// normal response body or inside an error body, and both mean the same
// thing: processing has not finished yet.
type QueuedSentinel struct {
	Queued  bool   `json:"queued"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// IsQueued reports whether the payload carries the queued discriminator.
func (s QueuedSentinel) IsQueued() bool {
	return s.Queued || s.Status == "queued"
}

// UpstreamErrorBody is the loose shape of upstream failure payloads. Which
// field carries the message varies by failure mode.
type UpstreamErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// BestMessage picks the most specific message string available.
func (b UpstreamErrorBody) BestMessage() string {
	switch {
	case b.Error != "":
		return b.Error
	case b.Message != "":
		return b.Message
	default:
		return b.Detail
	}
}
