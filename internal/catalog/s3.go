package catalog

func s3Schemas() []*OperationSchema {
	return []*OperationSchema{
		{
			Service:     "s3",
			Operation:   "create",
			Description: "Create an S3 bucket",
			Mutating:    true,
			Fields: []FieldSpec{
				{Name: "BucketName", Type: TypeString, Required: true,
					Description: "Globally unique bucket name"},
				{Name: "Region", Type: TypeString,
					Description: "Region for the bucket; the configured default when empty"},
				{Name: "ACL", Type: TypeEnum, Default: "private",
					Enum:        []string{"private", "public-read", "public-read-write", "authenticated-read"},
					Description: "Canned access control list"},
				{Name: "BucketEncryption", Type: TypeBoolean,
					Description: "Enable server-side encryption"},
				{Name: "Versioning", Type: TypeBoolean,
					Description: "Enable object versioning"},
			},
		},
		{
			Service:     "s3",
			Operation:   "read",
			Description: "List S3 buckets",
		},
		{
			Service:     "s3",
			Operation:   "delete",
			Description: "Delete an S3 bucket",
			Mutating:    true,
			Fields: []FieldSpec{
				{Name: "BucketName", Type: TypeString, Required: true,
					Description: "Bucket to delete"},
				{Name: "Force", Type: TypeBoolean, Default: false,
					Description: "Empty the bucket before deleting"},
			},
		},
	}
}
