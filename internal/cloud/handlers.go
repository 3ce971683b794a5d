package cloud

import (
	"context"

	"github.com/cloudwright/cloudwright/internal/engine"
)

// RegisterHandlers binds the instance and bucket services to every
// route the catalog declares. Launch requests carry an idempotency
// token; lifecycle actions are repeat-safe without one. Bucket
// deletion is neither, because a repeated delete after an ambiguous
// failure would misreport an already applied one as not found.
func RegisterHandlers(reg *engine.Registry, instances *EC2, buckets *S3) error {
	registrations := []engine.Registration{
		{
			Service:      "ec2",
			Operation:    "create",
			Mutating:     true,
			AcceptsToken: true,
			Handler: engine.HandlerFunc(func(ctx context.Context, inv engine.Invocation) (*engine.Outcome, error) {
				return instances.Create(ctx, inv.Params, inv.Token)
			}),
		},
		{
			Service:    "ec2",
			Operation:  "lifecycle",
			Mutating:   true,
			Idempotent: true,
			Handler: engine.HandlerFunc(func(ctx context.Context, inv engine.Invocation) (*engine.Outcome, error) {
				return instances.Lifecycle(ctx, inv.Params)
			}),
		},
		{
			Service:   "ec2",
			Operation: "read",
			Handler: engine.HandlerFunc(func(ctx context.Context, inv engine.Invocation) (*engine.Outcome, error) {
				return instances.Describe(ctx, inv.Params)
			}),
		},
		{
			Service:   "s3",
			Operation: "create",
			Mutating:  true,
			Handler: engine.HandlerFunc(func(ctx context.Context, inv engine.Invocation) (*engine.Outcome, error) {
				return buckets.Create(ctx, inv.Params)
			}),
		},
		{
			Service:   "s3",
			Operation: "read",
			Handler: engine.HandlerFunc(func(ctx context.Context, inv engine.Invocation) (*engine.Outcome, error) {
				return buckets.List(ctx)
			}),
		},
		{
			Service:   "s3",
			Operation: "delete",
			Mutating:  true,
			Handler: engine.HandlerFunc(func(ctx context.Context, inv engine.Invocation) (*engine.Outcome, error) {
				return buckets.Delete(ctx, inv.Params)
			}),
		},
	}

	for _, r := range registrations {
		if err := reg.Register(r); err != nil {
			return err
		}
	}
	return nil
}
