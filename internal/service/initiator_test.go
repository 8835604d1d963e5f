package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"splitpay/internal/ecr"
)

func TestNormalizeInitiation(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		success bool
		txID    string
		errText string
	}{
		{"accepted", 200, `{"transaction_id":"tx-1","status":"PENDING"}`, true, "tx-1", ""},
		{"accepted numeric id", 201, `{"transaction_id":4711}`, true, "4711", ""},
		{"accepted nested", 200, `{"transaction":{"transaction_id":"tx-9"}}`, true, "tx-9", ""},
		{"accepted with numeric message", 200, `{"transaction_id":"tx-1","status":"PENDING","message":42}`, true, "tx-1", ""},
		{"accepted with string transaction", 200, `{"transaction_id":"tx-3","transaction":"TX-3"}`, true, "tx-3", ""},
		{"error code fields", 200, `{"error_code":"E42","error_message":"terminal busy"}`, false, "", "E42: terminal busy"},
		{"error object", 400, `{"error":{"code":"1001","message":"invalid amount"}}`, false, "", "1001: invalid amount"},
		{"error string", 500, `{"error":"maintenance"}`, false, "", "maintenance"},
		{"declined with message", 200, `{"status":"DECLINED","display_message":"Card expired"}`, false, "", "Card expired"},
		{"declined bare", 200, `{"status":"rejected","transaction_id":"tx-2"}`, false, "", "transaction declined (status rejected)"},
		{"declined with odd message types", 200, `{"status":"DECLINED","display_message":7,"response_text":"Do not honor"}`, false, "", "Do not honor"},
		{"declined nested", 200, `{"transaction_detail":{"status":"FAILED","message":"no connection"}}`, false, "", "no connection"},
		{"http error without shape", 503, `{}`, false, "", "vendor returned HTTP 503: \"{}\""},
		{"ok without id", 200, `{"status":"PENDING"}`, false, "", `unexpected vendor response: "{\"status\":\"PENDING\"}"`},
		{"not json", 502, `<html>Bad Gateway</html>`, false, "", `vendor returned HTTP 502: "<html>Bad Gateway</html>"`},
		{"empty body", 200, ``, false, "", "unexpected vendor response: empty body"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := NormalizeInitiation(&ecr.Response{StatusCode: tc.status, Body: []byte(tc.body)})

			assert.Equal(t, tc.success, out.Success)
			assert.Equal(t, tc.txID, out.TransactionID)
			assert.Equal(t, tc.errText, out.Error)
			if tc.success {
				assert.JSONEq(t, tc.body, string(out.Payload))
			}
		})
	}
}

func TestParseStatusReport(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		kind    ReportKind
		message string
	}{
		{"explicit pending", `{"status":"IN_PROGRESS"}`, ReportPending, ""},
		{"explicit approved lower case", `{"status":"approved"}`, ReportApproved, ""},
		{"explicit rejected", `{"status":"DECLINED","response_text":"Insufficient funds"}`, ReportRejected, "Insufficient funds"},
		{"explicit cancelled bare", `{"status":"CANCELLED"}`, ReportRejected, "transaction cancelled"},
		{"approval code approved", `{"approval_code":"00"}`, ReportApproved, ""},
		{"approval code in progress", `{"approval_code":"09"}`, ReportPending, ""},
		{"approval code declined", `{"approval_code":"51"}`, ReportRejected, "declined with approval code 51"},
		{"nested status", `{"transaction":{"status":"SENDING"}}`, ReportPending, ""},
		{"nested approval code", `{"transaction_detail":{"approval_code":"00"}}`, ReportApproved, ""},
		{"approved with object message", `{"status":"APPROVED","message":{"text":"ok"}}`, ReportApproved, ""},
		{"approval code with string transaction", `{"approval_code":"00","transaction":"TX-9"}`, ReportApproved, ""},
		{"rejected with numeric display message", `{"status":"DECLINED","display_message":5,"message":"Card blocked"}`, ReportRejected, "Card blocked"},
		{"status of wrong type is ignored", `{"status":true,"approval_code":"09"}`, ReportPending, ""},
		{"unknown status falls through", `{"status":"WEIRD"}`, ReportUnrecognized, `unrecognized status response: "{\"status\":\"WEIRD\"}"`},
		{"not json", `oops`, ReportUnrecognized, `unparseable status response: "oops"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := ParseStatusReport([]byte(tc.body))
			assert.Equal(t, tc.kind.String(), r.Kind.String())
			assert.Equal(t, tc.message, r.Message)
		})
	}
}
