package identity

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/chukul/capsulectl/internal"
)

type fakeUser struct {
	keys     map[string]string // access key id -> secret
	inline   map[string]string // policy name -> document
	attached []string
}

// fakeIAM is an in-memory IAM server keeping users, keys and policies.
type fakeIAM struct {
	mu      sync.Mutex
	users   map[string]*fakeUser
	nextKey int
	calls   []string

	// failOn makes the named operation return an error.
	failOn string
}

func newFakeIAM() *fakeIAM {
	return &fakeIAM{users: make(map[string]*fakeUser)}
}

func noSuchEntity(name string) error {
	return &smithy.GenericAPIError{
		Code:    "NoSuchEntity",
		Message: fmt.Sprintf("The user with name %s cannot be found.", name),
	}
}

func (f *fakeIAM) record(op string) error {
	f.calls = append(f.calls, op)
	if f.failOn == op {
		return &smithy.GenericAPIError{Code: "ServiceFailure", Message: op + " failed"}
	}
	return nil
}

func (f *fakeIAM) user(name *string) (*fakeUser, error) {
	u, ok := f.users[aws.ToString(name)]
	if !ok {
		return nil, noSuchEntity(aws.ToString(name))
	}
	return u, nil
}

func (f *fakeIAM) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		switch c {
		case "GetUser", "ListAccessKeys", "ListUserPolicies", "ListAttachedUserPolicies":
		default:
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeIAM) GetUser(_ context.Context, in *iam.GetUserInput, _ ...func(*iam.Options)) (*iam.GetUserOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetUser"); err != nil {
		return nil, err
	}
	if _, err := f.user(in.UserName); err != nil {
		return nil, err
	}
	return &iam.GetUserOutput{User: &types.User{UserName: in.UserName}}, nil
}

func (f *fakeIAM) CreateUser(_ context.Context, in *iam.CreateUserInput, _ ...func(*iam.Options)) (*iam.CreateUserOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateUser"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.UserName)
	if _, ok := f.users[name]; ok {
		return nil, &smithy.GenericAPIError{Code: "EntityAlreadyExists", Message: "User with name " + name + " already exists."}
	}
	f.users[name] = &fakeUser{keys: make(map[string]string), inline: make(map[string]string)}
	return &iam.CreateUserOutput{User: &types.User{UserName: in.UserName}}, nil
}

func (f *fakeIAM) DeleteUser(_ context.Context, in *iam.DeleteUserInput, _ ...func(*iam.Options)) (*iam.DeleteUserOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteUser"); err != nil {
		return nil, err
	}
	u, err := f.user(in.UserName)
	if err != nil {
		return nil, err
	}
	if len(u.keys) > 0 || len(u.inline) > 0 || len(u.attached) > 0 {
		return nil, &smithy.GenericAPIError{Code: "DeleteConflict", Message: "Cannot delete entity, must delete policies first."}
	}
	delete(f.users, aws.ToString(in.UserName))
	return &iam.DeleteUserOutput{}, nil
}

func (f *fakeIAM) PutUserPolicy(_ context.Context, in *iam.PutUserPolicyInput, _ ...func(*iam.Options)) (*iam.PutUserPolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PutUserPolicy"); err != nil {
		return nil, err
	}
	u, err := f.user(in.UserName)
	if err != nil {
		return nil, err
	}
	u.inline[aws.ToString(in.PolicyName)] = aws.ToString(in.PolicyDocument)
	return &iam.PutUserPolicyOutput{}, nil
}

func (f *fakeIAM) ListUserPolicies(_ context.Context, in *iam.ListUserPoliciesInput, _ ...func(*iam.Options)) (*iam.ListUserPoliciesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListUserPolicies"); err != nil {
		return nil, err
	}
	u, err := f.user(in.UserName)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(u.inline))
	for n := range u.inline {
		names = append(names, n)
	}
	sort.Strings(names)
	return &iam.ListUserPoliciesOutput{PolicyNames: names}, nil
}

func (f *fakeIAM) DeleteUserPolicy(_ context.Context, in *iam.DeleteUserPolicyInput, _ ...func(*iam.Options)) (*iam.DeleteUserPolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteUserPolicy"); err != nil {
		return nil, err
	}
	u, err := f.user(in.UserName)
	if err != nil {
		return nil, err
	}
	delete(u.inline, aws.ToString(in.PolicyName))
	return &iam.DeleteUserPolicyOutput{}, nil
}

func (f *fakeIAM) CreateAccessKey(_ context.Context, in *iam.CreateAccessKeyInput, _ ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateAccessKey"); err != nil {
		return nil, err
	}
	u, err := f.user(in.UserName)
	if err != nil {
		return nil, err
	}
	f.nextKey++
	id := fmt.Sprintf("AKIAFAKE%08d", f.nextKey)
	secret := fmt.Sprintf("secret-%d", f.nextKey)
	u.keys[id] = secret
	return &iam.CreateAccessKeyOutput{AccessKey: &types.AccessKey{
		UserName:        in.UserName,
		AccessKeyId:     aws.String(id),
		SecretAccessKey: aws.String(secret),
		Status:          types.StatusTypeActive,
	}}, nil
}

func (f *fakeIAM) ListAccessKeys(_ context.Context, in *iam.ListAccessKeysInput, _ ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListAccessKeys"); err != nil {
		return nil, err
	}
	u, err := f.user(in.UserName)
	if err != nil {
		return nil, err
	}
	var md []types.AccessKeyMetadata
	for id := range u.keys {
		md = append(md, types.AccessKeyMetadata{AccessKeyId: aws.String(id), UserName: in.UserName})
	}
	return &iam.ListAccessKeysOutput{AccessKeyMetadata: md}, nil
}

func (f *fakeIAM) DeleteAccessKey(_ context.Context, in *iam.DeleteAccessKeyInput, _ ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteAccessKey"); err != nil {
		return nil, err
	}
	u, err := f.user(in.UserName)
	if err != nil {
		return nil, err
	}
	delete(u.keys, aws.ToString(in.AccessKeyId))
	return &iam.DeleteAccessKeyOutput{}, nil
}

func (f *fakeIAM) ListAttachedUserPolicies(_ context.Context, in *iam.ListAttachedUserPoliciesInput, _ ...func(*iam.Options)) (*iam.ListAttachedUserPoliciesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListAttachedUserPolicies"); err != nil {
		return nil, err
	}
	u, err := f.user(in.UserName)
	if err != nil {
		return nil, err
	}
	var out []types.AttachedPolicy
	for _, arn := range u.attached {
		out = append(out, types.AttachedPolicy{PolicyArn: aws.String(arn)})
	}
	return &iam.ListAttachedUserPoliciesOutput{AttachedPolicies: out}, nil
}

func (f *fakeIAM) DetachUserPolicy(_ context.Context, in *iam.DetachUserPolicyInput, _ ...func(*iam.Options)) (*iam.DetachUserPolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DetachUserPolicy"); err != nil {
		return nil, err
	}
	u, err := f.user(in.UserName)
	if err != nil {
		return nil, err
	}
	arn := aws.ToString(in.PolicyArn)
	for i, a := range u.attached {
		if a == arn {
			u.attached = append(u.attached[:i], u.attached[i+1:]...)
			break
		}
	}
	return &iam.DetachUserPolicyOutput{}, nil
}

// fakeSTS answers GetCallerIdentity for key pairs held by a fakeIAM.
type fakeSTS struct {
	iam       *fakeIAM
	accessKey string
	secretKey string
}

func (f *fakeIAM) stsFactory() STSFactory {
	return func(_ context.Context, ak, sk string) (STSAPI, error) {
		return &fakeSTS{iam: f, accessKey: ak, secretKey: sk}, nil
	}
}

func (s *fakeSTS) GetCallerIdentity(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	s.iam.mu.Lock()
	defer s.iam.mu.Unlock()
	for name, u := range s.iam.users {
		if secret, ok := u.keys[s.accessKey]; ok {
			if secret != s.secretKey {
				return nil, &smithy.GenericAPIError{Code: "SignatureDoesNotMatch", Message: "The request signature we calculated does not match."}
			}
			return &sts.GetCallerIdentityOutput{
				Account: aws.String("123456789012"),
				Arn:     aws.String("arn:aws:iam::123456789012:user/" + name),
				UserId:  aws.String("AIDAFAKE"),
			}, nil
		}
	}
	return nil, &smithy.GenericAPIError{Code: "InvalidClientTokenId", Message: "The security token included in the request is invalid."}
}

// memStore is a Store kept in memory.
type memStore struct {
	saved   *internal.Session
	noSaver bool
}

func (m *memStore) CanSave() bool { return !m.noSaver }
func (m *memStore) Exists() bool  { return m.saved != nil }

func (m *memStore) Save(s *internal.Session) error {
	c := *s
	m.saved = &c
	return nil
}

func (m *memStore) Load() (*internal.Session, error) {
	if m.saved == nil {
		return nil, internal.ErrNoStoredSession
	}
	c := *m.saved
	return &c, nil
}

func (m *memStore) Remove() error {
	if m.saved == nil {
		return internal.ErrNoStoredSession
	}
	m.saved = nil
	return nil
}
