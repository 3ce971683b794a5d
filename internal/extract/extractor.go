// Package extract turns a routed prompt into a schema-conformant parameter
// set. The model proposes field values; the schema decides what survives.
package extract

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cloudwright/cloudwright/internal/catalog"
	"github.com/cloudwright/cloudwright/internal/logging"
	"github.com/cloudwright/cloudwright/internal/provider"
	"github.com/cloudwright/cloudwright/internal/validate"
)

// Completer is the slice of the model client the extractor needs. Both a
// bare provider and the failover controller satisfy it.
type Completer interface {
	Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error)
}

type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

type Extractor struct {
	client Completer
	cfg    Config
	log    *logrus.Entry
}

func New(client Completer, cfg Config, logger *logrus.Logger) *Extractor {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &Extractor{
		client: client,
		cfg:    cfg,
		log:    logging.ForComponent(logger, "extractor"),
	}
}

// Extract asks the model for the schema's fields, then conforms the reply.
// A reply with no usable JSON is treated as an empty mapping, not an
// error; the missing fields surface through validation. The returned
// error covers only the model call itself.
func (e *Extractor) Extract(ctx context.Context, prompt string, schema *catalog.OperationSchema) (catalog.ParameterSet, []validate.Finding, error) {
	temp := e.cfg.Temperature
	req := &provider.CompletionRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: &temp,
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: SystemPrompt(schema)},
			{Role: provider.RoleUser, Content: prompt},
		},
	}

	resp, err := e.client.Complete(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("model extraction for %s: %w", schema.Key(), err)
	}

	raw, err := decodeObject(resp.Content)
	if err != nil {
		e.log.WithField("operation", schema.Key()).Warn("model reply carried no parameter object")
		raw = map[string]any{}
	}

	params, findings := Conform(raw, schema)
	Resolve(prompt, params, schema)

	e.log.WithFields(logrus.Fields{
		"operation": schema.Key(),
		"fields":    len(params),
		"findings":  len(findings),
	}).Debug("extraction complete")
	return params, findings, nil
}

// Conform applies the schema to a raw field mapping: undeclared fields are
// dropped, declared ones are coerced to their field type, and absent
// optional fields pick up their schema defaults. Missing required fields
// stay absent; the validator reports those. Iteration follows schema
// order, so findings come out in a stable order.
func Conform(raw map[string]any, schema *catalog.OperationSchema) (catalog.ParameterSet, []validate.Finding) {
	params := make(catalog.ParameterSet, len(raw))
	var findings []validate.Finding
	rejected := make(map[string]bool)

	for _, spec := range schema.Fields {
		rawVal, ok := raw[spec.Name]
		if !ok || rawVal == nil {
			continue
		}
		if normalized, ok := normalizeRaw(schema, spec.Name, rawVal); ok {
			rawVal = normalized
		}
		val, err := coerceValue(spec, rawVal)
		if err != nil {
			findings = append(findings, validate.Finding{
				Rule:     "coercion",
				Severity: validate.SeverityBlocking,
				Field:    spec.Name,
				Message:  fmt.Sprintf("%s: %v", spec.Name, err),
			})
			rejected[spec.Name] = true
			continue
		}
		params[spec.Name] = val
	}

	// Rejected fields stay absent rather than picking up a default.
	for _, spec := range schema.Fields {
		if spec.Default == nil || params.Has(spec.Name) || rejected[spec.Name] {
			continue
		}
		params[spec.Name] = spec.Default
	}
	return params, findings
}
