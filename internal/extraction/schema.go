package extraction

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// statementSchema is the JSON Schema for ExtractedStatement. The same text is
// embedded in the parsing prompt and compiled for output validation, so the
// model is asked for exactly what we check.
const statementSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["statement_id", "period", "current_balance", "transactions"],
  "properties": {
    "statement_id": {"type": "string", "minLength": 1},
    "card": {
      "type": ["object", "null"],
      "properties": {
        "last_four": {"type": "string"},
        "holder_name": {"type": "string"}
      }
    },
    "period": {
      "type": "object",
      "required": ["start", "end", "due_date"],
      "properties": {
        "start": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
        "end": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
        "due_date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
        "next_cycle_start": {
          "anyOf": [
            {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
            {"type": "null"}
          ]
        }
      }
    },
    "previous_balance": {"type": "array", "items": {"$ref": "#/$defs/money"}},
    "current_balance": {"type": "array", "minItems": 1, "items": {"$ref": "#/$defs/money"}},
    "minimum_payment": {"type": "array", "items": {"$ref": "#/$defs/money"}},
    "credit_limit": {"anyOf": [{"$ref": "#/$defs/money"}, {"type": "null"}]},
    "transactions": {"type": "array", "items": {"$ref": "#/$defs/transaction"}}
  },
  "$defs": {
    "money": {
      "type": "object",
      "required": ["amount", "currency"],
      "properties": {
        "amount": {"type": "number"},
        "currency": {"type": "string", "minLength": 3, "maxLength": 3}
      }
    },
    "transaction": {
      "type": "object",
      "required": ["date", "merchant", "amount"],
      "properties": {
        "date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
        "merchant": {"type": "string", "minLength": 1},
        "amount": {"$ref": "#/$defs/money"},
        "coupon": {"type": ["string", "null"]},
        "installment": {
          "anyOf": [
            {
              "type": "object",
              "required": ["current", "total"],
              "properties": {
                "current": {"type": "integer", "minimum": 1},
                "total": {"type": "integer", "minimum": 1}
              }
            },
            {"type": "null"}
          ]
        }
      }
    }
  }
}`

// compileStatementSchema compiles the embedded statement schema once at
// service construction.
func compileStatementSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(statementSchema))
	if err != nil {
		return nil, fmt.Errorf("extraction: parse statement schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("statement.schema.json", doc); err != nil {
		return nil, fmt.Errorf("extraction: add schema resource: %w", err)
	}

	schema, err := compiler.Compile("statement.schema.json")
	if err != nil {
		return nil, fmt.Errorf("extraction: compile statement schema: %w", err)
	}
	return schema, nil
}
