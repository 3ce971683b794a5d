package extract

import (
	"fmt"
	"strings"

	"github.com/cloudwright/cloudwright/internal/catalog"
)

// Extra guidance per operation, keyed by schema key. Teaches the model the
// description fields it should fall back on when the prompt carries no
// hard identifier.
var operationHints = map[string]string{
	"ec2/create": "When the request names an operating system instead of an AMI id, put the wording in ImageDescription. " +
		"When it sizes the machine in words instead of an instance type, put the wording in InstanceTypeDescription.",
	"ec2/lifecycle": "Action is the verb applied to the instance. " +
		"When the request describes the target instance by name rather than by id, put the description in InstanceDescription.",
	"s3/create": "BucketName must be exactly the name requested. " +
		"Record encryption and versioning settings only when the request mentions them.",
}

// SystemPrompt renders the extraction instructions for one operation. The
// model sees the field table and must answer with a single JSON object.
func SystemPrompt(schema *catalog.OperationSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a cloud operations assistant extracting parameters for a %s %s operation.\n\n",
		strings.ToUpper(schema.Service), schema.Operation)
	b.WriteString("Read the user's request and reply with a single JSON object mapping field names to values. ")
	b.WriteString("Use only the fields listed below. Omit any field the request does not specify; never invent values.\n\nFields:\n")
	for _, f := range schema.Fields {
		fmt.Fprintf(&b, "- %s (%s", f.Name, f.Type)
		if f.Required {
			b.WriteString(", required")
		}
		if len(f.Enum) > 0 {
			fmt.Fprintf(&b, ", one of: %s", strings.Join(f.Enum, ", "))
		}
		b.WriteString(")")
		if f.Description != "" {
			fmt.Fprintf(&b, ": %s", f.Description)
		}
		b.WriteString("\n")
	}
	if hint, ok := operationHints[schema.Key()]; ok {
		b.WriteString("\n")
		b.WriteString(hint)
		b.WriteString("\n")
	}
	b.WriteString("\nAnswer with the JSON object only, no prose.")
	return b.String()
}
