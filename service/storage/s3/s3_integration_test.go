//+build integration

package s3

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
)

func TestS3Upload(t *testing.T) {
	// Upload random data of different sizes around the multipart
	// threshold, download it and check equivalence.
	for _, size := range []int64{
		0,
		1,
		5*(1<<20) - 1,
		5*(1<<20) + 1,
	} {
		t.Run(fmt.Sprintf("size=%d", size), s3Test{Size: size}.TestS3Upload)
	}
}

type s3Test struct {
	Size int64
}

func (test s3Test) TestS3Upload(t *testing.T) {
	bucket := os.Getenv("HLSFLOW_S3_BUCKET")
	if bucket == "" {
		t.Skip("HLSFLOW_S3_BUCKET is not set")
	}
	storage := New(bucket, "us-east-1")

	key := fmt.Sprintf("integrationtest/TestS3Upload-%v", time.Now().Format(time.RFC3339))
	hasher := sha1.New()
	body := io.TeeReader(io.LimitReader(rand.New(rand.NewSource(0)), test.Size), hasher)

	url, err := storage.Upload(key, body)
	if err != nil {
		t.Fatalf("storage.Upload: %v", err)
	}
	uploadedHash := hex.EncodeToString(hasher.Sum(nil))
	defer func() {
		_, err := storage.S3API.DeleteObject(&s3.DeleteObjectInput{
			Bucket: aws.String(storage.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			t.Logf("Failed to delete object: %v", err)
		}
	}()
	t.Logf("Upload completed at %v", url)

	rc, err := storage.Download(key)
	if err != nil {
		t.Fatalf("Failed to download: %v", err)
	}
	defer rc.Close()

	hasher.Reset()
	if _, err := io.Copy(hasher, rc); err != nil {
		t.Fatalf("failed to io.Copy: %v", err)
	}
	if downloadedHash := hex.EncodeToString(hasher.Sum(nil)); uploadedHash != downloadedHash {
		t.Errorf("uploaded %s, downloaded %s", uploadedHash, downloadedHash)
	}
}
