// Package compute launches and drives EC2 instances owned by a principal.
package compute

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/chukul/capsulectl/internal/log"
)

const (
	DefaultImageID      = "ami-0fc32db49bc3bfbb1"
	DefaultInstanceType = "t2.micro"
	DefaultProjectTag   = "DigitalTimeCapsule"
	DefaultInstanceName = "DefaultEC2instance"
	DefaultWaitTimeout  = 10 * time.Minute
	DefaultRebootDelay  = 10 * time.Second

	// NoName is shown for instances without a Name tag.
	NoName = "N/A"
)

// ErrUnknownAction is returned by Apply for anything other than start,
// stop, reboot or terminate.
var ErrUnknownAction = errors.New("unknown instance action")

// EC2API is the subset of the EC2 client used here. It also satisfies the
// client interfaces of the SDK waiters and paginator.
type EC2API interface {
	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeInstanceStatus(ctx context.Context, params *ec2.DescribeInstanceStatusInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceStatusOutput, error)
	StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
	RebootInstances(ctx context.Context, params *ec2.RebootInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RebootInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
}

var _ EC2API = (*ec2.Client)(nil)

// Instance is the part of an EC2 instance shown in the menus.
type Instance struct {
	ID           string
	State        string
	Name         string
	PublicIP     string
	InstanceType string
	LaunchTime   time.Time
}

// Action is a lifecycle operation on an instance.
type Action string

const (
	Start     Action = "start"
	Stop      Action = "stop"
	Reboot    Action = "reboot"
	Terminate Action = "terminate"
)

// Actions lists the actions in menu order.
var Actions = []Action{Start, Stop, Reboot, Terminate}

// Options tune a Manager. Zero values take the package defaults.
type Options struct {
	ImageID      string
	InstanceType string
	ProjectTag   string
	DefaultName  string
	// Owner is written to the Owner tag of launched instances.
	Owner       string
	WaitTimeout time.Duration
	RebootDelay time.Duration
}

func (o *Options) setDefaults() {
	if o.ImageID == "" {
		o.ImageID = DefaultImageID
	}
	if o.InstanceType == "" {
		o.InstanceType = DefaultInstanceType
	}
	if o.ProjectTag == "" {
		o.ProjectTag = DefaultProjectTag
	}
	if o.DefaultName == "" {
		o.DefaultName = DefaultInstanceName
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = DefaultWaitTimeout
	}
	if o.RebootDelay < 0 {
		o.RebootDelay = 0
	}
}

// Manager runs instance operations against one EC2 client.
type Manager struct {
	client EC2API
	opts   Options
}

// New returns a Manager using client.
func New(client EC2API, opts Options) *Manager {
	opts.setDefaults()
	return &Manager{client: client, opts: opts}
}

// NewFromConfig returns a Manager on a real EC2 client.
func NewFromConfig(cfg aws.Config, opts Options) *Manager {
	return New(ec2.NewFromConfig(cfg), opts)
}

// Launch starts one instance tagged with name and waits for it to run.
// A blank name uses the configured default.
func (m *Manager) Launch(ctx context.Context, name string) (*Instance, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = m.opts.DefaultName
	}

	tags := []types.Tag{
		{Key: aws.String("Name"), Value: aws.String(name)},
		{Key: aws.String("Project"), Value: aws.String(m.opts.ProjectTag)},
	}
	if m.opts.Owner != "" {
		tags = append(tags, types.Tag{Key: aws.String("Owner"), Value: aws.String(m.opts.Owner)})
	}

	log.Debugf("run instance image=%s type=%s name=%s", m.opts.ImageID, m.opts.InstanceType, name)
	out, err := m.client.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:      aws.String(m.opts.ImageID),
		InstanceType: types.InstanceType(m.opts.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		TagSpecifications: []types.TagSpecification{
			{ResourceType: types.ResourceTypeInstance, Tags: tags},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch instance: %w", err)
	}
	if len(out.Instances) == 0 {
		return nil, errors.New("launch returned no instance")
	}

	id := aws.ToString(out.Instances[0].InstanceId)
	if err := m.waitRunning(ctx, id); err != nil {
		return nil, err
	}
	return m.Describe(ctx, id)
}

// List returns every visible instance in API order.
func (m *Manager) List(ctx context.Context) ([]Instance, error) {
	var instances []Instance
	p := ec2.NewDescribeInstancesPaginator(m.client, &ec2.DescribeInstancesInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list instances: %w", err)
		}
		log.Tracef("describe instances page: %d reservations", len(page.Reservations))
		for _, r := range page.Reservations {
			for _, inst := range r.Instances {
				instances = append(instances, fromEC2(inst))
			}
		}
	}
	return instances, nil
}

// Describe fetches one instance.
func (m *Manager) Describe(ctx context.Context, id string) (*Instance, error) {
	out, err := m.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instance %s: %w", id, err)
	}
	for _, r := range out.Reservations {
		for _, inst := range r.Instances {
			if aws.ToString(inst.InstanceId) == id {
				i := fromEC2(inst)
				return &i, nil
			}
		}
	}
	return nil, fmt.Errorf("instance %s not found", id)
}

// Apply runs action on instance id and blocks until it settles.
func (m *Manager) Apply(ctx context.Context, id string, action Action) (*Instance, error) {
	ids := []string{id}
	log.Debugf("%s instance %s", action, id)

	switch action {
	case Start:
		if _, err := m.client.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: ids}); err != nil {
			return nil, fmt.Errorf("failed to start %s: %w", id, err)
		}
		if err := m.waitRunning(ctx, id); err != nil {
			return nil, err
		}

	case Stop:
		if _, err := m.client.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: ids}); err != nil {
			return nil, fmt.Errorf("failed to stop %s: %w", id, err)
		}
		w := ec2.NewInstanceStoppedWaiter(m.client)
		if err := w.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: ids}, m.opts.WaitTimeout); err != nil {
			return nil, fmt.Errorf("waiting for %s to stop: %w", id, err)
		}

	case Reboot:
		if _, err := m.client.RebootInstances(ctx, &ec2.RebootInstancesInput{InstanceIds: ids}); err != nil {
			return nil, fmt.Errorf("failed to reboot %s: %w", id, err)
		}
		// Status checks still report ok right after the reboot call.
		if err := sleep(ctx, m.opts.RebootDelay); err != nil {
			return nil, err
		}
		w := ec2.NewInstanceStatusOkWaiter(m.client)
		if err := w.Wait(ctx, &ec2.DescribeInstanceStatusInput{InstanceIds: ids}, m.opts.WaitTimeout); err != nil {
			return nil, fmt.Errorf("waiting for %s to pass status checks: %w", id, err)
		}

	case Terminate:
		if _, err := m.client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: ids}); err != nil {
			return nil, fmt.Errorf("failed to terminate %s: %w", id, err)
		}
		w := ec2.NewInstanceTerminatedWaiter(m.client)
		if err := w.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: ids}, m.opts.WaitTimeout); err != nil {
			return nil, fmt.Errorf("waiting for %s to terminate: %w", id, err)
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	return m.Describe(ctx, id)
}

func (m *Manager) waitRunning(ctx context.Context, id string) error {
	w := ec2.NewInstanceRunningWaiter(m.client)
	if err := w.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}}, m.opts.WaitTimeout); err != nil {
		return fmt.Errorf("waiting for %s to run: %w", id, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func fromEC2(inst types.Instance) Instance {
	i := Instance{
		ID:           aws.ToString(inst.InstanceId),
		Name:         NoName,
		PublicIP:     aws.ToString(inst.PublicIpAddress),
		InstanceType: string(inst.InstanceType),
		LaunchTime:   aws.ToTime(inst.LaunchTime),
	}
	if inst.State != nil {
		i.State = string(inst.State.Name)
	}
	for _, t := range inst.Tags {
		if aws.ToString(t.Key) == "Name" {
			i.Name = aws.ToString(t.Value)
			break
		}
	}
	return i
}
