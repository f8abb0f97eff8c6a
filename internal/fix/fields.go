package fix

// FIX tag numbers referenced by the session layer (§9 Design Notes:
// "the Session inspects a small set of fields"). Business tags are out of
// scope; only header/trailer and admin-message fields are named here.
const (
	TagBeginString         = 8
	TagBodyLength          = 9
	TagMsgType             = 35
	TagSenderCompID        = 49
	TagTargetCompID        = 56
	TagMsgSeqNum           = 34
	TagSendingTime         = 52
	TagOrigSendingTime     = 122
	TagPossDupFlag         = 43
	TagPossResend          = 97
	TagCheckSum            = 10

	TagEncryptMethod       = 98
	TagHeartBtInt          = 108
	TagResetSeqNumFlag     = 141
	TagNextExpectedMsgSeqNum = 789
	TagTestReqID           = 112
	TagBeginSeqNo          = 7
	TagEndSeqNo            = 16
	TagNewSeqNo            = 36
	TagGapFillFlag         = 123
	TagRefSeqNum           = 45
	TagRefTagID            = 371
	TagRefMsgType          = 372
	TagSessionRejectReason = 373
	TagBusinessRejectReason = 380
	TagBusinessRejectRefID = 379
	TagText                = 58

	TagSenderSubID = 50
	TagTargetSubID = 57
)

// MsgType values for the admin messages the session layer handles
// directly (§6 Admin message types handled). Anything else is business
// traffic forwarded to Application.FromApp/ToApp unchanged.
const (
	MsgTypeHeartbeat             = "0"
	MsgTypeTestRequest           = "1"
	MsgTypeResendRequest         = "2"
	MsgTypeReject                = "3"
	MsgTypeSequenceReset         = "4"
	MsgTypeLogout                = "5"
	MsgTypeLogon                 = "A"
	MsgTypeBusinessMessageReject = "j"
)

// isAdminMsgType reports whether msgType is one the session layer
// intercepts before handing the message to Application.FromApp.
func isAdminMsgType(msgType string) bool {
	switch msgType {
	case MsgTypeHeartbeat, MsgTypeTestRequest, MsgTypeResendRequest,
		MsgTypeReject, MsgTypeSequenceReset, MsgTypeLogout, MsgTypeLogon,
		MsgTypeBusinessMessageReject:
		return true
	default:
		return false
	}
}

// SessionRejectReason is tag 373, the reason code on a session-level
// Reject (MsgType=3).
type SessionRejectReason int

// Values from the FIX SessionRejectReason code set relevant to this
// engine's own rejections; a DataDictionary may emit others for
// business-level validation failures.
const (
	RejectReasonInvalidTagNumber          SessionRejectReason = 0
	RejectReasonRequiredTagMissing        SessionRejectReason = 1
	RejectReasonTagNotDefinedForMsgType   SessionRejectReason = 2
	RejectReasonUndefinedTag              SessionRejectReason = 3
	RejectReasonTagSpecifiedWithoutValue  SessionRejectReason = 4
	RejectReasonValueIncorrect            SessionRejectReason = 5
	RejectReasonIncorrectDataFormat       SessionRejectReason = 6
	RejectReasonCompIDProblem             SessionRejectReason = 9
	RejectReasonSendingTimeAccuracy       SessionRejectReason = 10
	RejectReasonInvalidMsgType            SessionRejectReason = 11
	RejectReasonTagAppearsMoreThanOnce    SessionRejectReason = 13
	RejectReasonOther                     SessionRejectReason = 99
)

// BusinessRejectReason is tag 380, the reason code on a
// BusinessMessageReject (MsgType=j).
type BusinessRejectReason int

const (
	BusinessRejectUnknownMessageType   BusinessRejectReason = 3
	BusinessRejectUnsupportedMsgType   BusinessRejectReason = 3
	BusinessRejectApplicationNotAvail  BusinessRejectReason = 4
	BusinessRejectConditionallyRequiredFieldMissing BusinessRejectReason = 5
	BusinessRejectOther                BusinessRejectReason = 0
)
