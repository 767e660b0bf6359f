package notification

import (
	"encoding/json"
	"os"

	"reqflow/domain"
	"reqflow/misc"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

// Delivery is an external collaborator. The default sender posts the message
// to a webhook when NOTIFICATION_WEBHOOK_URL is set and only logs otherwise;
// failures are logged, never propagated to the caller.

var (
	NotifySubmittedFunc        = NotifySubmitted
	NotifyApprovalRequiredFunc = NotifyApprovalRequired
	NotifyApprovedFunc         = NotifyApproved
	NotifyDeclinedFunc         = NotifyDeclined
	NotifyReturnedFunc         = NotifyReturned
)

type Message struct {
	Kind string `json:"kind"`

	FormKind   domain.FormKind `json:"formKind"`
	RequestID  types.ID        `json:"requestId"`
	Title      string          `json:"title"`
	Status     string          `json:"status"`
	StageLabel string          `json:"stageLabel,omitempty"`

	RequestorID types.ID `json:"requestorId"`
	ReceiverID  types.ID `json:"receiverId"`
}

func NotifySubmitted(req *domain.RequestRecord, primaryApproverID types.ID) {
	send(Message{Kind: "submitted", FormKind: req.FormKind, RequestID: req.ID, Title: req.Title,
		Status: req.Status, RequestorID: req.RequestorID, ReceiverID: req.RequestorID})
	if primaryApproverID != 0 {
		send(Message{Kind: "submitted", FormKind: req.FormKind, RequestID: req.ID, Title: req.Title,
			Status: req.Status, RequestorID: req.RequestorID, ReceiverID: primaryApproverID})
	}
}

func NotifyApprovalRequired(req *domain.RequestRecord, approverID types.ID) {
	send(Message{Kind: "approval_required", FormKind: req.FormKind, RequestID: req.ID, Title: req.Title,
		Status: req.Status, RequestorID: req.RequestorID, ReceiverID: approverID})
}

func NotifyApproved(req *domain.RequestRecord, approverID types.ID, stageLabel string) {
	send(Message{Kind: "approved", FormKind: req.FormKind, RequestID: req.ID, Title: req.Title,
		Status: req.Status, StageLabel: stageLabel, RequestorID: req.RequestorID, ReceiverID: req.RequestorID})
}

func NotifyDeclined(req *domain.RequestRecord, approverID types.ID, stageLabel string) {
	send(Message{Kind: "declined", FormKind: req.FormKind, RequestID: req.ID, Title: req.Title,
		Status: req.Status, StageLabel: stageLabel, RequestorID: req.RequestorID, ReceiverID: req.RequestorID})
}

func NotifyReturned(req *domain.RequestRecord, approverID types.ID, reason string) {
	send(Message{Kind: "returned", FormKind: req.FormKind, RequestID: req.ID, Title: req.Title,
		Status: req.Status, StageLabel: reason, RequestorID: req.RequestorID, ReceiverID: req.RequestorID})
}

func send(m Message) {
	webhook := os.Getenv("NOTIFICATION_WEBHOOK_URL")
	if webhook == "" {
		logrus.WithField("notification", m).Info("notification delivery skipped, no webhook configured")
		return
	}

	body, err := json.Marshal(&m)
	if err != nil {
		logrus.Warnf("failed to marshal notification %v: %v", m, err)
		return
	}
	if _, err := misc.HttpInvokeJson("POST", webhook, nil, string(body)); err != nil {
		logrus.Warnf("failed to deliver notification %s for request %d: %v", m.Kind, m.RequestID, err)
	}
}
