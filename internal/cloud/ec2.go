package cloud

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/sirupsen/logrus"

	"github.com/cloudwright/cloudwright/internal/catalog"
	"github.com/cloudwright/cloudwright/internal/engine"
	"github.com/cloudwright/cloudwright/internal/logging"
)

// EC2API is the slice of the EC2 client the service needs. The SDK
// client satisfies it directly and tests substitute fakes.
type EC2API interface {
	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
	RebootInstances(ctx context.Context, params *ec2.RebootInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RebootInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// liveInstanceStates are the states an instance can be addressed in
// when it is looked up by name.
var liveInstanceStates = []string{"pending", "running", "stopping", "stopped"}

// EC2 executes instance operations against the provider.
type EC2 struct {
	api    EC2API
	images *ImageResolver
	log    *logrus.Entry
}

func NewEC2(api EC2API, images *ImageResolver, logger *logrus.Logger) *EC2 {
	return &EC2{
		api:    api,
		images: images,
		log:    logging.ForComponent(logger, "ec2"),
	}
}

// Create launches instances. An explicit ImageId wins; otherwise the
// ImageDescription is resolved to the newest matching public image.
// token, when non-empty, is passed as the client token so a retried
// launch cannot double-apply.
func (e *EC2) Create(ctx context.Context, params catalog.ParameterSet, token string) (*engine.Outcome, error) {
	instanceType, _ := params.String("InstanceType")

	imageID, _ := params.String("ImageId")
	if imageID == "" {
		description, _ := params.String("ImageDescription")
		imageID = e.images.Resolve(ctx, description)
	}

	minCount, maxCount := 1, 1
	if v, ok := params.Int("MinCount"); ok {
		minCount = v
	}
	if v, ok := params.Int("MaxCount"); ok {
		maxCount = v
	}
	if maxCount < minCount {
		maxCount = minCount
	}

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(imageID),
		InstanceType: ec2types.InstanceType(instanceType),
		MinCount:     aws.Int32(int32(minCount)),
		MaxCount:     aws.Int32(int32(maxCount)),
	}
	if token != "" {
		input.ClientToken = aws.String(token)
	}
	if v, ok := params.String("KeyName"); ok && v != "" {
		input.KeyName = aws.String(v)
	}
	if v, ok := params.String("UserData"); ok && v != "" {
		input.UserData = aws.String(base64.StdEncoding.EncodeToString([]byte(v)))
	}
	if v, ok := params.Bool("EbsOptimized"); ok {
		input.EbsOptimized = aws.Bool(v)
	}
	if tags, ok := params.StringMap("Tags"); ok && len(tags) > 0 {
		input.TagSpecifications = []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags:         tagList(tags),
		}}
	}

	subnetID, _ := params.String("SubnetId")
	groupIDs, _ := params.StringSlice("SecurityGroupIds")
	if publicIP, ok := params.Bool("AssociatePublicIpAddress"); ok {
		// Subnet and groups must ride on the interface spec, the
		// top-level fields conflict with it.
		iface := ec2types.InstanceNetworkInterfaceSpecification{
			DeviceIndex:              aws.Int32(0),
			AssociatePublicIpAddress: aws.Bool(publicIP),
		}
		if subnetID != "" {
			iface.SubnetId = aws.String(subnetID)
		}
		if len(groupIDs) > 0 {
			iface.Groups = groupIDs
		}
		input.NetworkInterfaces = []ec2types.InstanceNetworkInterfaceSpecification{iface}
	} else {
		if subnetID != "" {
			input.SubnetId = aws.String(subnetID)
		}
		if len(groupIDs) > 0 {
			input.SecurityGroupIds = groupIDs
		}
	}

	out, err := e.api.RunInstances(ctx, input)
	if err != nil {
		return nil, translateError(err, true)
	}

	ids := make([]string, 0, len(out.Instances))
	for _, inst := range out.Instances {
		ids = append(ids, aws.ToString(inst.InstanceId))
	}
	e.log.WithFields(logrus.Fields{
		"image":     imageID,
		"type":      instanceType,
		"instances": ids,
	}).Info("launched instances")

	return &engine.Outcome{
		ResourceIDs: ids,
		Metadata: map[string]string{
			"image": imageID,
			"type":  instanceType,
		},
	}, nil
}

// Lifecycle starts, stops, reboots or terminates one instance. The
// target comes from InstanceId, or is looked up by Name tag when only
// a description was given.
func (e *EC2) Lifecycle(ctx context.Context, params catalog.ParameterSet) (*engine.Outcome, error) {
	action, _ := params.String("Action")

	id, _ := params.String("InstanceId")
	if id == "" {
		description, _ := params.String("InstanceDescription")
		if description == "" {
			return nil, engine.NewError(engine.ClassPermanentValidation, "no instance id or description given", nil)
		}
		found, err := e.FindByName(ctx, description)
		if err != nil {
			return nil, err
		}
		id = found
	}

	var state string
	switch action {
	case "start":
		out, err := e.api.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{id}})
		if err != nil {
			return nil, translateError(err, true)
		}
		state = changedState(out.StartingInstances)
	case "stop":
		input := &ec2.StopInstancesInput{InstanceIds: []string{id}}
		if force, ok := params.Bool("Force"); ok && force {
			input.Force = aws.Bool(true)
		}
		out, err := e.api.StopInstances(ctx, input)
		if err != nil {
			return nil, translateError(err, true)
		}
		state = changedState(out.StoppingInstances)
	case "reboot":
		if _, err := e.api.RebootInstances(ctx, &ec2.RebootInstancesInput{InstanceIds: []string{id}}); err != nil {
			return nil, translateError(err, true)
		}
		// Reboot reports nothing back, fetch the state separately.
		state = "rebooting"
		if current, err := e.instanceState(ctx, id); err == nil && current != "" {
			state = current
		}
	case "terminate":
		out, err := e.api.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{id}})
		if err != nil {
			return nil, translateError(err, true)
		}
		state = changedState(out.TerminatingInstances)
	default:
		return nil, engine.NewError(engine.ClassPermanentValidation, fmt.Sprintf("unsupported lifecycle action %q", action), nil)
	}

	e.log.WithFields(logrus.Fields{
		"action":   action,
		"instance": id,
		"state":    state,
	}).Info("lifecycle action applied")

	return &engine.Outcome{
		ResourceIDs: []string{id},
		Metadata: map[string]string{
			"action": action,
			"state":  state,
		},
	}, nil
}

// Describe lists instances matching the optional id, Name tag and
// state filters. Metadata carries a one-line summary per instance.
func (e *EC2) Describe(ctx context.Context, params catalog.ParameterSet) (*engine.Outcome, error) {
	input := &ec2.DescribeInstancesInput{}
	if ids, ok := params.StringSlice("InstanceIds"); ok && len(ids) > 0 {
		input.InstanceIds = ids
	}
	if name, ok := params.String("NameFilter"); ok && name != "" {
		input.Filters = append(input.Filters, ec2types.Filter{
			Name:   aws.String("tag:Name"),
			Values: []string{name},
		})
	}
	if states, ok := params.StringSlice("States"); ok && len(states) > 0 {
		input.Filters = append(input.Filters, ec2types.Filter{
			Name:   aws.String("instance-state-name"),
			Values: states,
		})
	}

	out, err := e.api.DescribeInstances(ctx, input)
	if err != nil {
		return nil, translateError(err, false)
	}

	var ids []string
	meta := map[string]string{}
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			id := aws.ToString(inst.InstanceId)
			ids = append(ids, id)
			meta[id] = instanceSummary(inst)
		}
	}
	meta["count"] = strconv.Itoa(len(ids))

	return &engine.Outcome{ResourceIDs: ids, Metadata: meta}, nil
}

// FindByName resolves a Name tag to an instance id. Terminated and
// shutting-down instances are excluded; the first match wins.
func (e *EC2) FindByName(ctx context.Context, name string) (string, error) {
	out, err := e.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:Name"), Values: []string{name}},
			{Name: aws.String("instance-state-name"), Values: liveInstanceStates},
		},
	})
	if err != nil {
		return "", translateError(err, false)
	}
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			return aws.ToString(inst.InstanceId), nil
		}
	}
	return "", engine.NewError(engine.ClassPermanentNotFound, fmt.Sprintf("no instance named %q", name), nil)
}

func (e *EC2) instanceState(ctx context.Context, id string) (string, error) {
	out, err := e.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}})
	if err != nil {
		return "", translateError(err, false)
	}
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			if inst.State != nil {
				return string(inst.State.Name), nil
			}
		}
	}
	return "", nil
}

func changedState(changes []ec2types.InstanceStateChange) string {
	if len(changes) == 0 || changes[0].CurrentState == nil {
		return ""
	}
	return string(changes[0].CurrentState.Name)
}

func instanceSummary(inst ec2types.Instance) string {
	parts := make([]string, 0, 3)
	if inst.State != nil {
		parts = append(parts, string(inst.State.Name))
	}
	if inst.InstanceType != "" {
		parts = append(parts, string(inst.InstanceType))
	}
	for _, tag := range inst.Tags {
		if aws.ToString(tag.Key) == "Name" {
			parts = append(parts, aws.ToString(tag.Value))
			break
		}
	}
	return strings.Join(parts, " ")
}

func tagList(tags map[string]string) []ec2types.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]ec2types.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, ec2types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}
