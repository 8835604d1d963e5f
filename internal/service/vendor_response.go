package service

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

const maxSnippet = 200

// flexString accepts a JSON string or number. The vendor is inconsistent
// about quoting identifiers and approval codes.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string {
	return strings.TrimSpace(string(f))
}

// vendorBody is the union of every field the ECR API has been seen to return
// for sale and status calls.
type vendorBody struct {
	TransactionID  flexString
	Status         flexString
	ApprovalCode   *flexString
	Message        string
	DisplayMessage string
	ResponseText   string
	ErrorCode      flexString
	ErrorMessage   string
	Error          json.RawMessage

	Transaction       *vendorBody
	TransactionDetail *vendorBody
}

// vendorError is the explicit error-code object form.
type vendorError struct {
	Code    flexString `json:"code"`
	Message string     `json:"message"`
}

// decodeVendorBody reads each known field on its own. A field of an
// unexpected type is dropped without discarding the rest of the body, so a
// definitive status or transaction id survives a malformed message.
func decodeVendorBody(data []byte) (*vendorBody, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, false
	}
	return vendorBodyFromFields(fields), true
}

func vendorBodyFromFields(fields map[string]json.RawMessage) *vendorBody {
	b := &vendorBody{
		TransactionID:  flexField(fields, "transaction_id"),
		Status:         flexField(fields, "status"),
		Message:        stringField(fields, "message"),
		DisplayMessage: stringField(fields, "display_message"),
		ResponseText:   stringField(fields, "response_text"),
		ErrorCode:      flexField(fields, "error_code"),
		ErrorMessage:   stringField(fields, "error_message"),
		Error:          fields["error"],
	}

	if raw, ok := fields["approval_code"]; ok {
		var code flexString
		if json.Unmarshal(raw, &code) == nil {
			b.ApprovalCode = &code
		}
	}

	b.Transaction = nestedField(fields, "transaction")
	b.TransactionDetail = nestedField(fields, "transaction_detail")
	return b
}

func flexField(fields map[string]json.RawMessage, name string) flexString {
	var f flexString
	if raw, ok := fields[name]; ok {
		if json.Unmarshal(raw, &f) != nil {
			return ""
		}
	}
	return f
}

func stringField(fields map[string]json.RawMessage, name string) string {
	var s string
	if raw, ok := fields[name]; ok {
		if json.Unmarshal(raw, &s) != nil {
			return ""
		}
	}
	return s
}

func nestedField(fields map[string]json.RawMessage, name string) *vendorBody {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(raw, &nested); err != nil || nested == nil {
		return nil
	}
	return vendorBodyFromFields(nested)
}

// humanMessage returns the first non-empty human-readable text on b.
func (b *vendorBody) humanMessage() string {
	for _, m := range []string{b.DisplayMessage, b.Message, b.ResponseText, b.ErrorMessage} {
		if m = strings.TrimSpace(m); m != "" {
			return m
		}
	}
	return ""
}

// nested returns the embedded transaction objects, outermost first.
func (b *vendorBody) nested() []*vendorBody {
	var out []*vendorBody
	for _, n := range []*vendorBody{b.Transaction, b.TransactionDetail} {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if s == "" {
		return "empty body"
	}
	if len(s) > maxSnippet {
		s = s[:maxSnippet] + "..."
	}
	return strconv.Quote(s)
}
