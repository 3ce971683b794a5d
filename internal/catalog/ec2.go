package catalog

func intPtr(n int) *int { return &n }

func ec2Schemas() []*OperationSchema {
	return []*OperationSchema{
		{
			Service:     "ec2",
			Operation:   "create",
			Description: "Launch one or more EC2 instances",
			Mutating:    true,
			Fields: []FieldSpec{
				{Name: "InstanceType", Type: TypeString, Required: true,
					Description: "Instance type, e.g. t3.micro"},
				{Name: "InstanceTypeDescription", Type: TypeString,
					Description: "Sizing words when no instance type is given, e.g. small, large with lots of memory"},
				{Name: "ImageId", Type: TypeString,
					Description: "AMI ID, e.g. ami-0c55b159cbfafe1f0"},
				{Name: "ImageDescription", Type: TypeString,
					Description: "Named image family when no AMI ID is given: amazon linux, ubuntu, windows, red hat"},
				{Name: "MinCount", Type: TypeInteger, Default: 1, Min: intPtr(1),
					Description: "Minimum number of instances to launch"},
				{Name: "MaxCount", Type: TypeInteger, Default: 1, Min: intPtr(1),
					Description: "Maximum number of instances to launch"},
				{Name: "KeyName", Type: TypeString,
					Description: "Key pair name for SSH access"},
				{Name: "SecurityGroupIds", Type: TypeList,
					Description: "Security group IDs to attach"},
				{Name: "SubnetId", Type: TypeString,
					Description: "Subnet to launch into"},
				{Name: "UserData", Type: TypeString,
					Description: "Startup script passed to the instance"},
				{Name: "AssociatePublicIpAddress", Type: TypeBoolean,
					Description: "Whether to attach a public IP"},
				{Name: "EbsOptimized", Type: TypeBoolean,
					Description: "Enable EBS optimization"},
				{Name: "Tags", Type: TypeObject,
					Description: "Resource tags as key/value pairs, e.g. Name"},
			},
		},
		{
			Service:     "ec2",
			Operation:   "lifecycle",
			Description: "Start, stop, reboot, or terminate an existing instance",
			Mutating:    true,
			Fields: []FieldSpec{
				{Name: "Action", Type: TypeEnum, Required: true,
					Enum:        []string{"start", "stop", "reboot", "terminate"},
					Description: "Lifecycle action to perform"},
				{Name: "InstanceId", Type: TypeString,
					Description: "Target instance ID, e.g. i-0abc123def456"},
				{Name: "InstanceDescription", Type: TypeString,
					Description: "Name or description of the target instance when no ID is given"},
				{Name: "Force", Type: TypeBoolean, Default: false,
					Description: "Force-stop without graceful shutdown"},
			},
		},
		{
			Service:     "ec2",
			Operation:   "read",
			Description: "Describe EC2 instances",
			Fields: []FieldSpec{
				{Name: "InstanceIds", Type: TypeList,
					Description: "Instance IDs to describe; all when empty"},
				{Name: "NameFilter", Type: TypeString,
					Description: "Filter by Name tag"},
				{Name: "States", Type: TypeList,
					Description: "Filter by instance state, e.g. running, stopped"},
			},
		},
	}
}
