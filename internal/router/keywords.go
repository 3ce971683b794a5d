package router

// Keyword triggers per service. A service scores one point for each of its
// keywords present in the prompt.
var serviceKeywords = map[string][]string{
	"ec2":    {"ec2", "instance", "server", "virtual machine", "vm", "compute"},
	"s3":     {"s3", "storage", "bucket", "object", "file"},
	"rds":    {"rds", "database", "db", "sql", "mysql", "postgresql", "aurora"},
	"lambda": {"lambda", "function", "serverless", "event-driven"},
	"vpc":    {"vpc", "network", "subnet", "routing", "nat", "gateway"},
}

// Operation types in precedence order. Precedence breaks score ties, so a
// prompt matching "create" and "update" equally resolves to create.
var operationOrder = []string{"create", "read", "update", "delete", "lifecycle"}

var operationKeywords = map[string][]string{
	"create":    {"create", "launch", "start", "deploy", "provision", "set up", "setup"},
	"read":      {"describe", "get", "list", "show", "display", "view"},
	"update":    {"update", "modify", "change", "edit", "alter"},
	"delete":    {"delete", "remove", "terminate", "destroy", "tear down"},
	"lifecycle": {"start", "stop", "reboot", "restart", "terminate", "hibernate", "resume"},
}

// Words that mark a lifecycle keyword as targeting an existing machine when
// found within proximityWindow characters of it.
var instanceWords = []string{"instance", "server", "machine"}

const proximityWindow = 20
