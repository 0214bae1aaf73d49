// Package identity manages the IAM users that own a capsule: creating them
// with scoped inline policies, minting their access keys, validating a key
// pair through STS and tearing everything down again.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/chukul/capsulectl/internal"
	"github.com/chukul/capsulectl/internal/log"
)

// OwnerTagKey is the instance tag the compute policy is scoped on.
const OwnerTagKey = "Owner"

// DefaultBucketPrefix is prepended to the principal name to form its bucket.
const DefaultBucketPrefix = "timecapsule-"

var (
	ErrAlreadyExists  = errors.New("a user with that name already exists")
	ErrAuthFailure    = errors.New("login failed: the access key or secret key is not valid")
	ErrNoSavedSession = internal.ErrNoStoredSession
)

// IAMAPI is the subset of the IAM client used here.
type IAMAPI interface {
	GetUser(ctx context.Context, params *iam.GetUserInput, optFns ...func(*iam.Options)) (*iam.GetUserOutput, error)
	CreateUser(ctx context.Context, params *iam.CreateUserInput, optFns ...func(*iam.Options)) (*iam.CreateUserOutput, error)
	DeleteUser(ctx context.Context, params *iam.DeleteUserInput, optFns ...func(*iam.Options)) (*iam.DeleteUserOutput, error)
	PutUserPolicy(ctx context.Context, params *iam.PutUserPolicyInput, optFns ...func(*iam.Options)) (*iam.PutUserPolicyOutput, error)
	ListUserPolicies(ctx context.Context, params *iam.ListUserPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListUserPoliciesOutput, error)
	DeleteUserPolicy(ctx context.Context, params *iam.DeleteUserPolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteUserPolicyOutput, error)
	CreateAccessKey(ctx context.Context, params *iam.CreateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error)
	ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error)
	DeleteAccessKey(ctx context.Context, params *iam.DeleteAccessKeyInput, optFns ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error)
	ListAttachedUserPolicies(ctx context.Context, params *iam.ListAttachedUserPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedUserPoliciesOutput, error)
	DetachUserPolicy(ctx context.Context, params *iam.DetachUserPolicyInput, optFns ...func(*iam.Options)) (*iam.DetachUserPolicyOutput, error)
}

var _ IAMAPI = (*iam.Client)(nil)

// STSAPI is the subset of the STS client used to check a key pair.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

var _ STSAPI = (*sts.Client)(nil)

// STSFactory returns an STS client authenticated with the given key pair.
type STSFactory func(ctx context.Context, accessKey, secretKey string) (STSAPI, error)

// Store persists the current session between runs.
type Store interface {
	CanSave() bool
	Exists() bool
	Save(s *internal.Session) error
	Load() (*internal.Session, error)
	Remove() error
}

var _ Store = (*internal.FileStore)(nil)

// Options tune a Manager.
type Options struct {
	// Region recorded in new sessions and used for their service clients.
	Region string
	// BucketPrefix defaults to DefaultBucketPrefix.
	BucketPrefix string
	// Remember saves sessions to the store after register/login.
	Remember bool
}

// Manager performs the identity operations.
type Manager struct {
	iam    IAMAPI
	newSTS STSFactory
	store  Store
	opts   Options
}

// New returns a Manager. iamClient acts with the operator's credentials.
func New(iamClient IAMAPI, newSTS STSFactory, store Store, opts Options) *Manager {
	if opts.BucketPrefix == "" {
		opts.BucketPrefix = DefaultBucketPrefix
	}
	return &Manager{iam: iamClient, newSTS: newSTS, store: store, opts: opts}
}

// NewFromConfig builds a Manager on real SDK clients. cfg carries the
// operator's credentials; login checks use a fresh static-credential config.
func NewFromConfig(cfg aws.Config, store Store, opts Options) *Manager {
	if opts.Region == "" {
		opts.Region = cfg.Region
	}
	return New(iam.NewFromConfig(cfg), DefaultSTSFactory(opts.Region), store, opts)
}

// DefaultSTSFactory builds STS clients pinned to a key pair.
func DefaultSTSFactory(region string) STSFactory {
	return func(ctx context.Context, accessKey, secretKey string) (STSAPI, error) {
		opts := []internal.Option{internal.WithStaticCredentials(accessKey, secretKey)}
		if region != "" {
			opts = append(opts, internal.WithRegion(region))
		}
		cfg, err := internal.LoadAWSConfig(ctx, opts...)
		if err != nil {
			return nil, err
		}
		if cfg.Region == "" {
			// STS has a global endpoint; any region resolves it.
			cfg.Region = "us-east-1"
		}
		return sts.NewFromConfig(cfg), nil
	}
}

// BucketFor returns the bucket name principal is allowed to use.
func (m *Manager) BucketFor(principal string) string {
	return BucketName(m.opts.BucketPrefix, principal)
}

// Register creates principal name with its two inline policies and a fresh
// access key. Nothing is created when the name is taken. A failure part-way
// leaves the user in place; Deregister cleans it up.
func (m *Manager) Register(ctx context.Context, name string) (*internal.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("user name must not be empty")
	}

	_, err := m.iam.GetUser(ctx, &iam.GetUserInput{UserName: aws.String(name)})
	switch {
	case err == nil:
		return nil, ErrAlreadyExists
	case internal.ErrorCode(err) != "NoSuchEntity":
		return nil, fmt.Errorf("failed to look up user %s: %w", name, err)
	}

	log.Debugf("creating iam user %s", name)
	if _, err := m.iam.CreateUser(ctx, &iam.CreateUserInput{UserName: aws.String(name)}); err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", name, err)
	}

	keyOut, err := m.iam.CreateAccessKey(ctx, &iam.CreateAccessKeyInput{UserName: aws.String(name)})
	if err != nil {
		return nil, fmt.Errorf("failed to create access key for %s: %w", name, err)
	}

	policies := []struct {
		name string
		doc  PolicyDocument
	}{
		{StoragePolicyName(name), StoragePolicy(m.BucketFor(name))},
		{ComputePolicyName(name), ComputePolicy(name)},
	}
	for _, p := range policies {
		body, err := p.doc.JSON()
		if err != nil {
			return nil, err
		}
		log.Debugf("attaching inline policy %s", p.name)
		_, err = m.iam.PutUserPolicy(ctx, &iam.PutUserPolicyInput{
			UserName:       aws.String(name),
			PolicyName:     aws.String(p.name),
			PolicyDocument: aws.String(body),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to attach policy %s: %w", p.name, err)
		}
	}

	s := &internal.Session{
		Principal: name,
		AccessKey: aws.ToString(keyOut.AccessKey.AccessKeyId),
		SecretKey: aws.ToString(keyOut.AccessKey.SecretAccessKey),
		Region:    m.opts.Region,
		CreatedAt: time.Now(),
	}
	log.WithField("key", s.MaskedAccessKey()).Infof("registered user %s", name)
	m.remember(s)
	return s, nil
}

// Login checks the key pair with STS and returns a session for the user it
// belongs to. Every failure is reported as ErrAuthFailure.
func (m *Manager) Login(ctx context.Context, accessKey, secretKey string) (*internal.Session, error) {
	s, err := m.verify(ctx, accessKey, secretKey)
	if err != nil {
		return nil, err
	}
	m.remember(s)
	return s, nil
}

// Resume loads the saved session and checks it is still valid.
func (m *Manager) Resume(ctx context.Context) (*internal.Session, error) {
	if m.store == nil {
		return nil, ErrNoSavedSession
	}
	saved, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	s, err := m.verify(ctx, saved.AccessKey, saved.SecretKey)
	if err != nil {
		return nil, err
	}
	if saved.Region != "" {
		s.Region = saved.Region
	}
	s.CreatedAt = saved.CreatedAt
	return s, nil
}

// HasSavedSession reports whether Resume has something to load.
func (m *Manager) HasSavedSession() bool {
	return m.store != nil && m.store.CanSave() && m.store.Exists()
}

func (m *Manager) verify(ctx context.Context, accessKey, secretKey string) (*internal.Session, error) {
	accessKey = strings.TrimSpace(accessKey)
	secretKey = strings.TrimSpace(secretKey)
	if accessKey == "" || secretKey == "" {
		return nil, ErrAuthFailure
	}

	client, err := m.newSTS(ctx, accessKey, secretKey)
	if err != nil {
		log.WithError(err).Debugf("sts client")
		return nil, ErrAuthFailure
	}
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		log.WithError(err).Debugf("get caller identity")
		return nil, ErrAuthFailure
	}

	arn := aws.ToString(out.Arn)
	return &internal.Session{
		Principal: PrincipalFromArn(arn),
		AccessKey: accessKey,
		SecretKey: secretKey,
		Region:    m.opts.Region,
		AccountID: aws.ToString(out.Account),
		Arn:       arn,
		CreatedAt: time.Now(),
	}, nil
}

func (m *Manager) remember(s *internal.Session) {
	if !m.opts.Remember || m.store == nil || !m.store.CanSave() {
		return
	}
	if err := m.store.Save(s); err != nil {
		log.WithError(err).Warnf("could not save session")
	}
}

// PrincipalFromArn extracts the user name from an IAM or STS ARN, e.g.
// arn:aws:iam::123456789012:user/alice gives alice.
func PrincipalFromArn(arn string) string {
	i := strings.Index(arn, ":user/")
	if i < 0 {
		i = strings.LastIndex(arn, ":")
	}
	rest := arn[i+1:]
	if j := strings.LastIndex(rest, "/"); j >= 0 {
		rest = rest[j+1:]
	}
	return rest
}

// Deregister removes every access key and policy of name, then the user.
// It stops at the first failure.
func (m *Manager) Deregister(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	user := aws.String(name)

	var keyIDs []string
	keys := iam.NewListAccessKeysPaginator(m.iam, &iam.ListAccessKeysInput{UserName: user})
	for keys.HasMorePages() {
		page, err := keys.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list access keys of %s: %w", name, err)
		}
		for _, k := range page.AccessKeyMetadata {
			keyIDs = append(keyIDs, aws.ToString(k.AccessKeyId))
		}
	}
	for _, id := range keyIDs {
		log.Debugf("deleting access key %s", id)
		if _, err := m.iam.DeleteAccessKey(ctx, &iam.DeleteAccessKeyInput{UserName: user, AccessKeyId: aws.String(id)}); err != nil {
			return fmt.Errorf("failed to delete access key %s: %w", id, err)
		}
	}

	var inline []string
	policies := iam.NewListUserPoliciesPaginator(m.iam, &iam.ListUserPoliciesInput{UserName: user})
	for policies.HasMorePages() {
		page, err := policies.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list policies of %s: %w", name, err)
		}
		inline = append(inline, page.PolicyNames...)
	}
	for _, p := range inline {
		log.Debugf("deleting inline policy %s", p)
		if _, err := m.iam.DeleteUserPolicy(ctx, &iam.DeleteUserPolicyInput{UserName: user, PolicyName: aws.String(p)}); err != nil {
			return fmt.Errorf("failed to delete policy %s: %w", p, err)
		}
	}

	var attached []string
	managed := iam.NewListAttachedUserPoliciesPaginator(m.iam, &iam.ListAttachedUserPoliciesInput{UserName: user})
	for managed.HasMorePages() {
		page, err := managed.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list attached policies of %s: %w", name, err)
		}
		for _, p := range page.AttachedPolicies {
			attached = append(attached, aws.ToString(p.PolicyArn))
		}
	}
	for _, arn := range attached {
		log.Debugf("detaching policy %s", arn)
		if _, err := m.iam.DetachUserPolicy(ctx, &iam.DetachUserPolicyInput{UserName: user, PolicyArn: aws.String(arn)}); err != nil {
			return fmt.Errorf("failed to detach policy %s: %w", arn, err)
		}
	}

	if _, err := m.iam.DeleteUser(ctx, &iam.DeleteUserInput{UserName: user}); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", name, err)
	}
	log.Infof("deleted user %s with %d keys", name, len(keyIDs))
	return nil
}

// Logout removes the saved session. Keys on the server are left alone.
func (m *Manager) Logout() error {
	if m.store == nil {
		return ErrNoSavedSession
	}
	return m.store.Remove()
}
