package cmd

import (
	"context"

	"github.com/chukul/capsulectl/internal"
	"github.com/chukul/capsulectl/internal/compute"
	"github.com/chukul/capsulectl/internal/config"
	"github.com/chukul/capsulectl/internal/identity"
	"github.com/chukul/capsulectl/internal/log"
	"github.com/chukul/capsulectl/internal/shell"
	"github.com/chukul/capsulectl/internal/storage"
)

// app holds what every command builds from the resolved configuration.
type app struct {
	cfg   *config.Config
	store *internal.FileStore
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	secret, err := internal.GetSecret(flagSecret)
	if err != nil {
		log.Debugf("no credential file secret: %v", err)
		secret = ""
	}
	return &app{
		cfg:   cfg,
		store: internal.NewFileStore(cfg.CredentialsFile, secret),
	}, nil
}

// identityManager acts with the operator's credentials from the default
// chain or --profile.
func (a *app) identityManager(ctx context.Context) (*identity.Manager, error) {
	awsCfg, err := internal.LoadAWSConfig(ctx,
		internal.WithProfile(a.cfg.Profile),
		internal.WithRegion(a.cfg.Region),
	)
	if err != nil {
		return nil, err
	}
	return identity.NewFromConfig(awsCfg, a.store, identity.Options{
		Region:       awsCfg.Region,
		BucketPrefix: a.cfg.Storage.BucketPrefix,
		Remember:     a.cfg.RememberSession,
	}), nil
}

func (a *app) newCompute(ctx context.Context, s *internal.Session) (shell.Compute, error) {
	awsCfg, err := s.AWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	c := a.cfg.Compute
	return compute.NewFromConfig(awsCfg, compute.Options{
		ImageID:      c.ImageID,
		InstanceType: c.InstanceType,
		ProjectTag:   c.ProjectTag,
		DefaultName:  c.DefaultInstanceName,
		Owner:        s.Principal,
		WaitTimeout:  c.WaitTimeout,
		RebootDelay:  c.RebootDelay,
	}), nil
}

func (a *app) newStorage(ctx context.Context, s *internal.Session) (shell.Storage, error) {
	awsCfg, err := s.AWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return storage.NewFromConfig(awsCfg, storage.Options{
		Region:        awsCfg.Region,
		ClassicRegion: a.cfg.Storage.ClassicRegion,
	}), nil
}
