// Package shell is the numbered-menu front end. It owns the current
// session and forwards each choice to the identity, compute and storage
// managers.
package shell

import (
	"context"
	"errors"

	"github.com/chukul/capsulectl/internal"
	"github.com/chukul/capsulectl/internal/compute"
	"github.com/chukul/capsulectl/internal/identity"
	"github.com/chukul/capsulectl/internal/log"
	"github.com/chukul/capsulectl/internal/storage"
	"github.com/chukul/capsulectl/internal/ui"
)

// Identity is what the shell needs from the identity manager.
type Identity interface {
	Register(ctx context.Context, name string) (*internal.Session, error)
	Login(ctx context.Context, accessKey, secretKey string) (*internal.Session, error)
	Resume(ctx context.Context) (*internal.Session, error)
	HasSavedSession() bool
	Deregister(ctx context.Context, name string) error
	Logout() error
	BucketFor(principal string) string
}

// Compute is what the shell needs from the compute manager.
type Compute interface {
	Launch(ctx context.Context, name string) (*compute.Instance, error)
	List(ctx context.Context) ([]compute.Instance, error)
	Apply(ctx context.Context, id string, action compute.Action) (*compute.Instance, error)
}

// Storage is what the shell needs from the storage manager.
type Storage interface {
	CreateBucket(ctx context.Context, name string) (*storage.Bucket, error)
	ListBuckets(ctx context.Context) ([]storage.Bucket, error)
	DeleteBucket(ctx context.Context, name string) error
	Upload(ctx context.Context, path, bucket, key string) (*storage.Object, error)
	ListObjects(ctx context.Context, bucket string) ([]storage.Object, error)
	Download(ctx context.Context, bucket, key, localName string) (string, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}

var (
	_ Identity = (*identity.Manager)(nil)
	_ Compute  = (*compute.Manager)(nil)
	_ Storage  = (*storage.Manager)(nil)
)

// ComputeFactory builds a compute manager acting as the session's principal.
type ComputeFactory func(ctx context.Context, s *internal.Session) (Compute, error)

// StorageFactory builds a storage manager acting as the session's principal.
type StorageFactory func(ctx context.Context, s *internal.Session) (Storage, error)

// Shell runs the menus.
type Shell struct {
	p          *ui.Prompter
	identity   Identity
	newCompute ComputeFactory
	newStorage StorageFactory

	session *internal.Session
	compute Compute
	storage Storage
}

// New returns a Shell reading from p.
func New(p *ui.Prompter, id Identity, newCompute ComputeFactory, newStorage StorageFactory) *Shell {
	return &Shell{p: p, identity: id, newCompute: newCompute, newStorage: newStorage}
}

// Session returns the logged-in session, or nil.
func (s *Shell) Session() *internal.Session {
	return s.session
}

// Run shows the login menu, then the main menu, until the user exits,
// input ends or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	s.p.Title("Welcome to the Digital Time Capsule!")

	for {
		var (
			exit bool
			err  error
		)
		if s.session == nil {
			exit, err = s.loginMenu(ctx)
		} else {
			exit, err = s.mainMenu(ctx)
		}
		if errors.Is(err, ui.ErrInputClosed) {
			log.Debugf("input closed, exiting")
			return nil
		}
		if errors.Is(err, context.Canceled) {
			s.p.Println("Interrupted.")
			return nil
		}
		if err != nil {
			return err
		}
		if exit {
			s.p.Println("Exiting programme, goodbye!")
			return nil
		}
	}
}

// menu shows a numbered menu unless ctx has been cancelled.
func (s *Shell) menu(ctx context.Context, title string, options []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.p.Menu(title, options)
}

func (s *Shell) loginMenu(ctx context.Context) (bool, error) {
	choice, err := s.menu(ctx, "LOGIN", []string{"Login", "Register", "Exit"})
	if err != nil {
		return false, err
	}
	switch choice {
	case 1:
		return false, s.login(ctx)
	case 2:
		return false, s.register(ctx)
	default:
		return true, nil
	}
}

func (s *Shell) login(ctx context.Context) error {
	if s.identity.HasSavedSession() {
		resume, err := s.p.Confirm("A saved session was found. Resume it?")
		if err != nil {
			return err
		}
		if resume {
			sess, err := ui.Busy(ctx, s.p, "Checking saved session...", s.identity.Resume)
			if err == nil {
				s.begin(sess)
				return nil
			}
			s.fail("Could not resume session", err)
		}
	}

	ak, err := s.p.ReadLine("Please enter your access key: ")
	if err != nil {
		return err
	}
	sk, err := s.p.ReadSecret("Please enter your secret key: ")
	if errors.Is(err, ui.ErrCancelled) {
		s.p.Println("Login cancelled.")
		return nil
	}
	if err != nil {
		return err
	}

	sess, err := ui.Busy(ctx, s.p, "Logging in...", func(ctx context.Context) (*internal.Session, error) {
		return s.identity.Login(ctx, ak, sk)
	})
	if err != nil {
		s.p.Printf("❌ %v\n", err)
		return nil
	}
	s.begin(sess)
	return nil
}

func (s *Shell) register(ctx context.Context) error {
	name, err := s.p.ReadLine("Enter a username to register: ")
	if err != nil {
		return err
	}
	if name == "" {
		s.p.Println("Username must not be empty.")
		return nil
	}

	sess, err := ui.Busy(ctx, s.p, "Creating user "+name+"...", func(ctx context.Context) (*internal.Session, error) {
		return s.identity.Register(ctx, name)
	})
	switch {
	case errors.Is(err, identity.ErrAlreadyExists):
		s.p.Printf("❌ User %q already exists. Please try a different username.\n", name)
		return nil
	case err != nil:
		s.fail("Registration failed", err)
		return nil
	}

	s.success("User %q created with its storage and compute policies.", sess.Principal)
	s.p.Printf("   Access key: %s\n", sess.AccessKey)
	s.p.Printf("   Secret key: %s\n", sess.SecretKey)
	s.hint("Save these keys now. The secret key cannot be shown again.")
	s.hint("New keys can take a few seconds before AWS accepts them.")
	s.begin(sess)
	return nil
}

func (s *Shell) begin(sess *internal.Session) {
	s.session = sess
	s.compute = nil
	s.storage = nil
	s.success("Logged in as %s (key %s).", sess.Principal, sess.MaskedAccessKey())
}

func (s *Shell) end() {
	s.session = nil
	s.compute = nil
	s.storage = nil
}

func (s *Shell) mainMenu(ctx context.Context) (bool, error) {
	choice, err := s.menu(ctx, "DIGITAL TIME CAPSULE MENU", []string{
		"Compute menu",
		"Storage menu",
		"Delete my account",
		"Logout",
		"Exit",
	})
	if err != nil {
		return false, err
	}

	switch choice {
	case 1:
		return false, s.computeMenu(ctx)
	case 2:
		return false, s.storageMenu(ctx)
	case 3:
		return false, s.deleteAccount(ctx)
	case 4:
		s.logout()
		return false, nil
	default:
		return true, nil
	}
}

func (s *Shell) logout() {
	s.p.Println("Logging out...")
	err := s.identity.Logout()
	switch {
	case err == nil:
		s.success("Logged out. Saved credentials deleted.")
	case errors.Is(err, identity.ErrNoSavedSession):
		s.success("Logged out.")
	default:
		s.fail("Could not delete saved credentials", err)
	}
	s.end()
}

func (s *Shell) deleteAccount(ctx context.Context) error {
	name := s.session.Principal
	ok, err := s.p.Confirm("Delete user " + name + " and all of its access keys? This cannot be undone.")
	if err != nil {
		return err
	}
	if !ok {
		s.p.Println("Deletion cancelled.")
		return nil
	}

	_, err = ui.Busy(ctx, s.p, "Deleting user "+name+"...", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.identity.Deregister(ctx, name)
	})
	if err != nil {
		s.fail("Could not delete user "+name, err)
		return nil
	}
	s.success("Deleted user %s.", name)
	if err := s.identity.Logout(); err != nil && !errors.Is(err, identity.ErrNoSavedSession) {
		s.fail("Could not delete saved credentials", err)
	}
	s.end()
	return nil
}
