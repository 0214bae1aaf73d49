package shell

import (
	"context"
	"errors"

	"github.com/chukul/capsulectl/internal"
	"github.com/chukul/capsulectl/internal/storage"
	"github.com/chukul/capsulectl/internal/ui"
)

func (s *Shell) storageClient(ctx context.Context) (Storage, error) {
	if s.storage == nil {
		st, err := s.newStorage(ctx, s.session)
		if err != nil {
			return nil, err
		}
		s.storage = st
	}
	return s.storage, nil
}

func (s *Shell) storageMenu(ctx context.Context) error {
	st, err := s.storageClient(ctx)
	if err != nil {
		s.fail("Could not connect to S3", err)
		return nil
	}

	for {
		choice, err := s.menu(ctx, "STORAGE MENU", []string{
			"Bucket operations",
			"File operations",
			"Back to main menu",
		})
		if err != nil {
			return err
		}
		switch choice {
		case 1:
			err = s.bucketMenu(ctx, st)
		case 2:
			err = s.fileMenu(ctx, st)
		default:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (s *Shell) bucketMenu(ctx context.Context, st Storage) error {
	for {
		choice, err := s.menu(ctx, "BUCKET OPERATIONS", []string{
			"Create bucket",
			"List buckets",
			"Delete bucket",
			"Back to storage menu",
		})
		if err != nil {
			return err
		}
		switch choice {
		case 1:
			err = s.createBucket(ctx, st)
		case 2:
			s.listBuckets(ctx, st)
		case 3:
			err = s.deleteBucket(ctx, st)
		default:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (s *Shell) fileMenu(ctx context.Context, st Storage) error {
	for {
		choice, err := s.menu(ctx, "FILE OPERATIONS", []string{
			"Upload file",
			"List files",
			"Download file",
			"Delete file",
			"Back to storage menu",
		})
		if err != nil {
			return err
		}
		switch choice {
		case 1:
			err = s.upload(ctx, st)
		case 2:
			err = s.listFiles(ctx, st)
		case 3:
			err = s.download(ctx, st)
		case 4:
			err = s.deleteFile(ctx, st)
		default:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// pick asks for an item number; 0 prints cancelled and returns 0.
func (s *Shell) pick(prompt string, n int, cancelled string) (int, error) {
	idx, err := s.p.SelectIndex(prompt, n)
	if err == nil && idx == 0 {
		s.p.Println(cancelled)
	}
	return idx, err
}

// askBucket reads a bucket name, defaulting to the principal's own bucket.
func (s *Shell) askBucket(prompt string) (string, error) {
	own := s.identity.BucketFor(s.session.Principal)
	name, err := s.p.ReadLine(prompt + " (blank for " + own + "): ")
	if err != nil {
		return "", err
	}
	if name == "" {
		return own, nil
	}
	return name, nil
}

func (s *Shell) createBucket(ctx context.Context, st Storage) error {
	name, err := s.askBucket("Enter a name for the new bucket")
	if err != nil {
		return err
	}
	if _, err := storage.NormalizeBucketName(name); err != nil {
		s.p.Printf("❌ Bucket name must be between %d and %d characters.\n", storage.MinBucketNameLen, storage.MaxBucketNameLen)
		return nil
	}

	b, err := ui.Busy(ctx, s.p, "Creating bucket...", func(ctx context.Context) (*storage.Bucket, error) {
		return st.CreateBucket(ctx, name)
	})
	if err != nil {
		s.fail("Error creating bucket", err)
		return nil
	}
	region := s.session.Region
	if region == "" {
		region = "default region"
	}
	s.success("Bucket %s created in %s.", b.Name, region)
	return nil
}

func (s *Shell) listBuckets(ctx context.Context, st Storage) []storage.Bucket {
	buckets, err := ui.Busy(ctx, s.p, "Fetching buckets...", st.ListBuckets)
	if err != nil {
		s.fail("Error listing buckets", err)
		return nil
	}
	if len(buckets) == 0 {
		s.p.Println("No buckets were found.")
		return nil
	}
	s.p.Title("BUCKETS")
	for i, b := range buckets {
		s.p.Printf("%d. %s (created %s)\n", i+1, b.Name, internal.FormatTime(b.CreatedAt))
	}
	return buckets
}

func (s *Shell) deleteBucket(ctx context.Context, st Storage) error {
	buckets := s.listBuckets(ctx, st)
	if len(buckets) == 0 {
		return nil
	}
	idx, err := s.pick("Select a bucket to delete by number", len(buckets), "Deletion cancelled.")
	if err != nil || idx == 0 {
		return err
	}
	name := buckets[idx-1].Name

	ok, err := s.p.Confirm("Are you sure you want to delete the bucket " + name + "? This cannot be undone.")
	if err != nil {
		return err
	}
	if !ok {
		s.p.Println("Deletion cancelled.")
		return nil
	}

	_, err = ui.Busy(ctx, s.p, "Deleting bucket...", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, st.DeleteBucket(ctx, name)
	})
	if err != nil {
		s.fail("Error deleting bucket", err)
		return nil
	}
	s.success("Bucket %s was deleted.", name)
	return nil
}

func (s *Shell) upload(ctx context.Context, st Storage) error {
	path, err := s.p.ReadLine("Enter the path of the file to upload: ")
	if err != nil {
		return err
	}
	bucket, err := s.askBucket("Bucket to upload into")
	if err != nil {
		return err
	}
	key, err := s.p.ReadLine("Name of the file in the bucket (blank to keep the file name): ")
	if err != nil {
		return err
	}

	obj, err := ui.Busy(ctx, s.p, "Uploading...", func(ctx context.Context) (*storage.Object, error) {
		return st.Upload(ctx, path, bucket, key)
	})
	if errors.Is(err, storage.ErrFileNotFound) {
		s.p.Println("❌ The file does not exist. Please check the path again.")
		return nil
	}
	if err != nil {
		s.fail("Failed to upload", err)
		return nil
	}
	s.success("Uploaded %s to %s as %s (%s).", path, bucket, obj.Key, internal.FormatSize(obj.Size))
	return nil
}

// listObjects asks for a bucket and prints its objects. It returns the
// bucket name with the listing; an empty listing has been reported already.
func (s *Shell) listObjects(ctx context.Context, st Storage) (string, []storage.Object, error) {
	bucket, err := s.askBucket("Bucket name")
	if err != nil {
		return "", nil, err
	}
	objects, err := ui.Busy(ctx, s.p, "Fetching files...", func(ctx context.Context) ([]storage.Object, error) {
		return st.ListObjects(ctx, bucket)
	})
	if err != nil {
		s.fail("Error listing files", err)
		return bucket, nil, nil
	}
	if len(objects) == 0 {
		s.p.Printf("No files found in bucket %q.\n", bucket)
		return bucket, nil, nil
	}
	s.p.Title("FILES IN " + bucket)
	for i, o := range objects {
		s.p.Printf("%d. %s (%s, modified %s)\n", i+1, o.Key, internal.FormatSize(o.Size), internal.FormatAge(o.LastModified))
	}
	return bucket, objects, nil
}

func (s *Shell) listFiles(ctx context.Context, st Storage) error {
	_, _, err := s.listObjects(ctx, st)
	return err
}

func (s *Shell) download(ctx context.Context, st Storage) error {
	bucket, objects, err := s.listObjects(ctx, st)
	if err != nil || len(objects) == 0 {
		return err
	}
	idx, err := s.pick("Pick a file to download", len(objects), "Download cancelled.")
	if err != nil || idx == 0 {
		return err
	}
	key := objects[idx-1].Key

	local, err := s.p.ReadLine("Save the file locally as (blank for " + storage.DefaultLocalName(key) + "): ")
	if err != nil {
		return err
	}
	path, err := ui.Busy(ctx, s.p, "Downloading...", func(ctx context.Context) (string, error) {
		return st.Download(ctx, bucket, key, local)
	})
	if err != nil {
		s.fail("Error downloading", err)
		return nil
	}
	s.success("Downloaded %s as %s.", key, path)
	return nil
}

func (s *Shell) deleteFile(ctx context.Context, st Storage) error {
	bucket, objects, err := s.listObjects(ctx, st)
	if err != nil || len(objects) == 0 {
		return err
	}
	idx, err := s.pick("Pick a file to delete", len(objects), "Deletion cancelled.")
	if err != nil || idx == 0 {
		return err
	}
	key := objects[idx-1].Key

	ok, err := s.p.Confirm("Are you sure you want to permanently delete " + key + "?")
	if err != nil {
		return err
	}
	if !ok {
		s.p.Println("Deletion cancelled.")
		return nil
	}

	_, err = ui.Busy(ctx, s.p, "Deleting...", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, st.DeleteObject(ctx, bucket, key)
	})
	if err != nil {
		s.fail("Error deleting file", err)
		return nil
	}
	s.success("File %s has been permanently deleted.", key)
	return nil
}
