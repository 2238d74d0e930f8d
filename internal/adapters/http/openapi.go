package httpadapter

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

//go:embed openapi.yaml
var openAPISpec []byte

// contract validates JSON request bodies against component schemas of the
// embedded OpenAPI document.
type contract struct {
	doc *openapi3.T
}

func loadContract() (*contract, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi spec: %w", err)
	}
	return &contract{doc: doc}, nil
}

// decode validates raw against the named schema, then unmarshals it into dst.
func (c *contract) decode(schema string, raw []byte, dst any) error {
	const op = "decode request body"
	if len(raw) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, op, errors.New("request body is required"))
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, op, errors.New("invalid json"))
	}
	ref, ok := c.doc.Components.Schemas[schema]
	if !ok || ref.Value == nil {
		return fmt.Errorf("%s: schema %q is not defined", op, schema)
	}
	if err := ref.Value.VisitJSON(value); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, op, schemaError(err))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, op, err)
	}
	return nil
}

func schemaError(err error) error {
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		if field := schemaErr.JSONPointer(); len(field) > 0 {
			return fmt.Errorf("%v: %s", field, schemaErr.Reason)
		}
		return errors.New(schemaErr.Reason)
	}
	return err
}

func serveOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}
