// Package validate checks a conformed parameter set against the
// cross-field rules a structural schema cannot express: completeness,
// security posture, cost sanity, and site-specific rulepack checks.
package validate

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cloudwright/cloudwright/internal/catalog"
	"github.com/cloudwright/cloudwright/internal/logging"
)

type Config struct {
	MaxInstanceCount int      // MaxCount ceiling before a cost warning
	Scripts          []Script // rulepack checks, run after the builtin rules
}

type Validator struct {
	cfg Config
	log *logrus.Entry
}

func New(cfg Config, logger *logrus.Logger) *Validator {
	if cfg.MaxInstanceCount <= 0 {
		cfg.MaxInstanceCount = 10
	}
	return &Validator{cfg: cfg, log: logging.ForComponent(logger, "validator")}
}

// Validate runs every rule category and collects all findings in one
// pass; nothing short-circuits. Categories and the rules inside them
// evaluate in a fixed order, so an unchanged parameter set always yields
// an identical finding list.
func (v *Validator) Validate(params catalog.ParameterSet, schema *catalog.OperationSchema) []Finding {
	var findings []Finding
	findings = append(findings, checkCompleteness(params, schema)...)
	findings = append(findings, checkStructural(params, schema)...)
	findings = append(findings, checkSecurity(params, schema)...)
	findings = append(findings, checkCost(params, schema, v.cfg.MaxInstanceCount)...)
	findings = append(findings, checkOptimization(params, schema)...)
	findings = append(findings, v.runScripts(params, schema)...)

	v.log.WithFields(logrus.Fields{
		"operation": schema.Key(),
		"findings":  len(findings),
		"blocking":  len(Blocking(findings)),
	}).Debug("validation complete")
	return findings
}

// runScripts executes the configured rulepack checks. A script that fails
// to load or run becomes an info finding rather than killing validation.
func (v *Validator) runScripts(params catalog.ParameterSet, schema *catalog.OperationSchema) []Finding {
	var out []Finding
	for _, script := range v.cfg.Scripts {
		found, err := RunCheck(script, params, schema)
		if err != nil {
			v.log.WithError(err).WithField("script", script.Name).Warn("rulepack check failed")
			out = append(out, Finding{
				Rule:     script.Name,
				Severity: SeverityInfo,
				Message:  fmt.Sprintf("rulepack check %s failed: %v", script.Name, err),
			})
			continue
		}
		out = append(out, found...)
	}
	return out
}
