package cloud

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cloudwright/cloudwright/internal/logging"
)

// fallbackImageID is used when the image lookup fails or matches
// nothing, so a launch degrades to a known public image instead of
// erroring out.
const fallbackImageID = "ami-0c55b159cbfafe1f0"

// imageOwners restricts lookups to the canonical publishers: Amazon,
// Canonical and Red Hat.
var imageOwners = []string{"amazon", "099720109477", "309956199498"}

// ImageAPI is the slice of the EC2 client the resolver needs.
type ImageAPI interface {
	DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
}

// ImageResolver turns free-form OS descriptions into concrete AMI ids
// by querying the provider for the newest matching public image.
// Results are cached per OS family when a redis client is configured.
type ImageResolver struct {
	api   ImageAPI
	cache *redis.Client
	ttl   time.Duration
	log   *logrus.Entry
}

func NewImageResolver(api ImageAPI, cache *redis.Client, ttl time.Duration, logger *logrus.Logger) *ImageResolver {
	return &ImageResolver{
		api:   api,
		cache: cache,
		ttl:   ttl,
		log:   logging.ForComponent(logger, "images"),
	}
}

// Resolve maps description to an AMI id. It never fails: lookup
// errors and empty matches fall back to fallbackImageID so the caller
// can always proceed.
func (r *ImageResolver) Resolve(ctx context.Context, description string) string {
	pattern, family := imagePattern(description)

	if id := r.cached(ctx, family); id != "" {
		return id
	}

	out, err := r.api.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: imageOwners,
		Filters: []ec2types.Filter{
			{Name: aws.String("name"), Values: []string{pattern}},
			{Name: aws.String("state"), Values: []string{"available"}},
		},
	})
	if err != nil {
		r.log.WithError(err).WithField("family", family).Warn("image lookup failed, using fallback")
		return fallbackImageID
	}
	if len(out.Images) == 0 {
		r.log.WithField("family", family).Warn("no image matched, using fallback")
		return fallbackImageID
	}

	images := out.Images
	sort.Slice(images, func(i, j int) bool {
		return aws.ToString(images[i].CreationDate) > aws.ToString(images[j].CreationDate)
	})
	id := aws.ToString(images[0].ImageId)
	r.store(ctx, family, id)
	r.log.WithFields(logrus.Fields{"family": family, "image": id}).Debug("resolved image")
	return id
}

// imagePattern picks the AMI name pattern and cache family for an OS
// description. Unrecognized descriptions default to Amazon Linux 2.
func imagePattern(description string) (pattern, family string) {
	d := strings.ToLower(description)
	switch {
	case strings.Contains(d, "amazon linux"):
		return "amzn2-ami-hvm-*-x86_64-gp2", "amazon-linux"
	case strings.Contains(d, "ubuntu"):
		return "ubuntu/images/hvm-ssd/ubuntu-focal-20.04-amd64-server-*", "ubuntu"
	case strings.Contains(d, "windows"):
		return "Windows_Server-2019-English-Full-Base-*", "windows"
	case strings.Contains(d, "red hat"), strings.Contains(d, "rhel"):
		return "RHEL-8*-x86_64-*", "rhel"
	default:
		return "amzn2-ami-hvm-*-x86_64-gp2", "amazon-linux"
	}
}

func (r *ImageResolver) cached(ctx context.Context, family string) string {
	if r.cache == nil {
		return ""
	}
	id, err := r.cache.Get(ctx, imageKey(family)).Result()
	if err != nil {
		if err != redis.Nil {
			r.log.WithError(err).Debug("image cache read failed")
		}
		return ""
	}
	return id
}

func (r *ImageResolver) store(ctx context.Context, family, id string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, imageKey(family), id, r.ttl).Err(); err != nil {
		r.log.WithError(err).Debug("image cache write failed")
	}
}

func imageKey(family string) string {
	return "cloudwright:ami:" + family
}
