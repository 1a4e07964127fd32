package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const createPaymentSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["student_info", "amount"],
  "properties": {
    "student_info": {
      "type": "object",
      "required": ["name", "id", "email"],
      "properties": {
        "name":  { "type": "string", "minLength": 1 },
        "id":    { "type": "string", "minLength": 1 },
        "email": { "type": "string", "minLength": 1 }
      }
    },
    "amount": { "type": "number", "exclusiveMinimum": 0, "exclusiveMaximum": 1000000000000 }
  }
}`

const webhookSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["order_info"],
  "properties": {
    "order_info": {
      "type": "object",
      "required": ["order_id", "status", "transaction_amount", "payment_mode", "bank_reference", "payment_time", "error_message"],
      "properties": {
        "order_id":           { "type": "string", "minLength": 1 },
        "order_amount":       { "type": "number" },
        "transaction_amount": { "type": "number" },
        "gateway":            { "type": "string" },
        "bank_reference":     { "type": "string" },
        "status":             { "type": "string", "minLength": 1 },
        "payment_mode":       { "type": "string" },
        "payemnt_details":    { "type": "string" },
        "payment_details":    { "type": "string" },
        "Payment_message":    { "type": "string" },
        "payment_time":       { "type": "string", "minLength": 1 },
        "error_message":      { "type": "string" }
      }
    }
  }
}`

var (
	createPaymentSchema = mustSchema(createPaymentSchemaJSON)
	webhookSchema       = mustSchema(webhookSchemaJSON)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return s
}

// validateBody reports every schema violation of body in one message.
func validateBody(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}

func readValidated(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return nil, false
	}
	if err := validateBody(schema, body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return body, true
}
