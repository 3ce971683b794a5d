package validate

import (
	"fmt"
	"strings"

	"github.com/cloudwright/cloudwright/internal/catalog"
)

// Field pairs where at least one of the two must be present. A bare
// required flag cannot express "an id or a description of it".
var oneOfPairs = map[string][][2]string{
	"ec2/create":    {{"ImageId", "ImageDescription"}},
	"ec2/lifecycle": {{"InstanceId", "InstanceDescription"}},
}

func checkCompleteness(params catalog.ParameterSet, schema *catalog.OperationSchema) []Finding {
	var out []Finding
	for _, spec := range schema.RequiredFields() {
		if params.Has(spec.Name) {
			continue
		}
		out = append(out, Finding{
			Rule:     "completeness",
			Severity: SeverityBlocking,
			Field:    spec.Name,
			Message:  fmt.Sprintf("%s required", spec.Name),
		})
	}
	for _, pair := range oneOfPairs[schema.Key()] {
		if !params.Has(pair[0]) && !params.Has(pair[1]) {
			out = append(out, Finding{
				Rule:     "completeness",
				Severity: SeverityBlocking,
				Message:  fmt.Sprintf("either %s or %s is required", pair[0], pair[1]),
			})
		}
	}
	return out
}

// checkStructural re-verifies declared types and ranges on whatever is
// present. Extraction already coerced these, but parameter patches enter
// the set without passing through the extractor.
func checkStructural(params catalog.ParameterSet, schema *catalog.OperationSchema) []Finding {
	var out []Finding
	for _, spec := range schema.Fields {
		v, ok := params[spec.Name]
		if !ok {
			continue
		}
		if f, bad := structuralFinding(spec, v); bad {
			out = append(out, f)
		}
	}
	if schema.Key() == "ec2/create" {
		lo, okLo := params.Int("MinCount")
		hi, okHi := params.Int("MaxCount")
		if okLo && okHi && lo > hi {
			out = append(out, Finding{
				Rule:     "structural",
				Severity: SeverityBlocking,
				Message:  fmt.Sprintf("MinCount %d exceeds MaxCount %d", lo, hi),
			})
		}
	}
	return out
}

func structuralFinding(spec catalog.FieldSpec, v any) (Finding, bool) {
	blocking := func(msg string) (Finding, bool) {
		return Finding{Rule: "structural", Severity: SeverityBlocking, Field: spec.Name, Message: msg}, true
	}
	switch spec.Type {
	case catalog.TypeString:
		if _, ok := v.(string); !ok {
			return blocking(fmt.Sprintf("%s must be a string", spec.Name))
		}
	case catalog.TypeInteger:
		n, ok := v.(int)
		if !ok {
			return blocking(fmt.Sprintf("%s must be an integer", spec.Name))
		}
		if spec.Min != nil && n < *spec.Min {
			return blocking(fmt.Sprintf("%s must be at least %d", spec.Name, *spec.Min))
		}
		if spec.Max != nil && n > *spec.Max {
			return blocking(fmt.Sprintf("%s must be at most %d", spec.Name, *spec.Max))
		}
	case catalog.TypeBoolean:
		if _, ok := v.(bool); !ok {
			return blocking(fmt.Sprintf("%s must be a boolean", spec.Name))
		}
	case catalog.TypeEnum:
		s, ok := v.(string)
		if !ok || !spec.AllowsValue(s) {
			return blocking(fmt.Sprintf("%s must be one of %s", spec.Name, strings.Join(spec.Enum, ", ")))
		}
	case catalog.TypeList:
		if _, ok := v.([]string); !ok {
			return blocking(fmt.Sprintf("%s must be a list of strings", spec.Name))
		}
	case catalog.TypeObject:
		if _, ok := v.(map[string]string); !ok {
			return blocking(fmt.Sprintf("%s must be a key/value map", spec.Name))
		}
	}
	return Finding{}, false
}

func checkSecurity(params catalog.ParameterSet, schema *catalog.OperationSchema) []Finding {
	var out []Finding
	switch schema.Key() {
	case "ec2/create":
		if groups, _ := params.StringSlice("SecurityGroupIds"); len(groups) == 0 {
			out = append(out, Finding{
				Rule: "security", Severity: SeverityWarning, Field: "SecurityGroupIds",
				Message: "no security groups specified; the default group may be more open than intended",
			})
		}
		if public, _ := params.Bool("AssociatePublicIpAddress"); public {
			out = append(out, Finding{
				Rule: "security", Severity: SeverityWarning, Field: "AssociatePublicIpAddress",
				Message: "instance will receive a public IP address",
			})
		}
		if !params.Has("KeyName") {
			out = append(out, Finding{
				Rule: "security", Severity: SeverityInfo, Field: "KeyName",
				Message: "no SSH key pair attached; the instance will not be reachable over SSH",
			})
		}
	case "s3/create":
		acl, _ := params.String("ACL")
		switch acl {
		case "public-read-write":
			out = append(out, Finding{
				Rule: "security", Severity: SeverityBlocking, Field: "ACL",
				Message: "public-read-write allows anonymous writes; narrow the ACL first",
			})
		case "public-read":
			out = append(out, Finding{
				Rule: "security", Severity: SeverityWarning, Field: "ACL",
				Message: "bucket contents will be publicly readable",
			})
		}
		if enc, ok := params.Bool("BucketEncryption"); !ok || !enc {
			out = append(out, Finding{
				Rule: "security", Severity: SeverityWarning, Field: "BucketEncryption",
				Message: "server-side encryption is not enabled",
			})
		}
	}
	return out
}

func checkCost(params catalog.ParameterSet, schema *catalog.OperationSchema, countCeiling int) []Finding {
	var out []Finding
	if schema.Key() != "ec2/create" {
		return out
	}
	if n, ok := params.Int("MaxCount"); ok && n > countCeiling {
		out = append(out, Finding{
			Rule: "cost", Severity: SeverityWarning, Field: "MaxCount",
			Message: fmt.Sprintf("up to %d instances requested, above the ceiling of %d", n, countCeiling),
		})
	}
	if t, ok := params.String("InstanceType"); ok && strings.Contains(t, "xlarge") {
		out = append(out, Finding{
			Rule: "cost", Severity: SeverityInfo, Field: "InstanceType",
			Message: fmt.Sprintf("%s is a high-cost instance size", t),
		})
	}
	return out
}

func checkOptimization(params catalog.ParameterSet, schema *catalog.OperationSchema) []Finding {
	var out []Finding
	if schema.Key() != "ec2/create" {
		return out
	}
	t, _ := params.String("InstanceType")
	if strings.HasPrefix(t, "t2.") {
		out = append(out, Finding{
			Rule: "optimization", Severity: SeverityInfo, Field: "InstanceType",
			Message: "t3 instances offer better price-performance than t2",
		})
	}
	burstable := strings.HasPrefix(t, "t2.") || strings.HasPrefix(t, "t3.")
	if opt, ok := params.Bool("EbsOptimized"); t != "" && !burstable && (!ok || !opt) {
		out = append(out, Finding{
			Rule: "optimization", Severity: SeverityInfo, Field: "EbsOptimized",
			Message: "EBS optimization is off for a non-burstable instance type",
		})
	}
	return out
}
