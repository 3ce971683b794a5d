package extract

import (
	"regexp"
	"strings"

	"github.com/cloudwright/cloudwright/internal/catalog"
)

// Lifecycle verbs the model may echo verbatim from the prompt, mapped to
// the canonical action they mean.
var actionAliases = map[string]string{
	"launch":   "start",
	"run":      "start",
	"shutdown": "stop",
	"halt":     "stop",
	"pause":    "stop",
	"restart":  "reboot",
	"delete":   "terminate",
	"remove":   "terminate",
	"destroy":  "terminate",
}

var instanceIDPattern = regexp.MustCompile(`i-[a-z0-9]{8,17}`)

// normalizeRaw rewrites a raw model value before coercion. Only the
// lifecycle Action needs this: the model tends to echo the user's verb,
// and aliases like "shutdown" or "destroy" must land on the canonical
// action instead of failing the enum check.
func normalizeRaw(schema *catalog.OperationSchema, field string, raw any) (any, bool) {
	if schema.Key() != "ec2/lifecycle" || field != "Action" {
		return nil, false
	}
	s, ok := raw.(string)
	if !ok {
		return nil, false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if canonical, ok := actionAliases[s]; ok {
		return canonical, true
	}
	return s, true
}

// Resolve fills concrete identifiers from the descriptive fields the model
// is told to fall back on. Runs after coercion and defaulting, so it only
// ever sees typed values. ImageDescription is deliberately left alone:
// the cloud adapter resolves it against the provider at execution time,
// where the newest matching image and the cache live.
func Resolve(prompt string, params catalog.ParameterSet, schema *catalog.OperationSchema) {
	if schema.Service != "ec2" {
		return
	}
	switch schema.Operation {
	case "create":
		resolveInstanceType(params)
	case "lifecycle":
		resolveInstanceID(prompt, params)
	}
}

func resolveInstanceType(params catalog.ParameterSet) {
	if params.Has("InstanceType") {
		return
	}
	desc, ok := params.String("InstanceTypeDescription")
	if !ok {
		return
	}
	params["InstanceType"] = instanceTypeFor(desc)
}

// instanceTypeFor maps a sizing description to a concrete instance type.
// The size word picks the tier and a compute or memory word picks the
// family; anything unmatched lands on t3.micro.
func instanceTypeFor(desc string) string {
	d := strings.ToLower(desc)
	compute := strings.Contains(d, "compute") || strings.Contains(d, "cpu")
	memory := strings.Contains(d, "memory") || strings.Contains(d, "ram")
	switch {
	case strings.Contains(d, "small") || strings.Contains(d, "micro"):
		if memory {
			return "r5.large"
		}
		return "t3.micro"
	case strings.Contains(d, "medium"):
		if compute {
			return "c5.large"
		}
		if memory {
			return "r5.large"
		}
		return "t3.medium"
	case strings.Contains(d, "large"):
		if compute {
			return "c5.xlarge"
		}
		if memory {
			return "r5.xlarge"
		}
		return "m5.large"
	}
	return "t3.micro"
}

// resolveInstanceID lifts an instance id straight off the prompt when the
// model did not surface one.
func resolveInstanceID(prompt string, params catalog.ParameterSet) {
	if params.Has("InstanceId") {
		return
	}
	if id := instanceIDPattern.FindString(strings.ToLower(prompt)); id != "" {
		params["InstanceId"] = id
	}
}
