package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileKey(t *testing.T) {
	key := ProfileKey(42, "Me At The Beach.JPG")

	assert.True(t, strings.HasPrefix(key, "profiles/42/"), key)
	assert.True(t, strings.HasSuffix(key, ".jpg"), key)
	assert.NotEqual(t, key, ProfileKey(42, "Me At The Beach.JPG"))
}

func TestCleanKey(t *testing.T) {
	testCases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "profiles/1/a.png", want: "profiles/1/a.png"},
		{in: "../../etc/passwd", want: "etc/passwd"},
		{in: `profiles\1\b.png`, want: "profiles/1/b.png"},
		{in: "", wantErr: true},
		{in: "/", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := cleanKey(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrEmptyKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLocalPut(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir, "https://api.basegigs.test/")

	url, err := l.Put(context.Background(), "profiles/7/photo.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://api.basegigs.test/uploads/profiles/7/photo.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "profiles", "7", "photo.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	b, _ := io.ReadAll(params.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Put(t *testing.T) {
	fake := &fakeS3{}
	s := newS3(fake, "basegigs-uploads", "eu-west-2", "")

	url, err := s.Put(context.Background(), "profiles/7/cv.pdf", "application/pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)

	assert.Equal(t, "https://basegigs-uploads.s3.eu-west-2.amazonaws.com/profiles/7/cv.pdf", url)
	assert.Equal(t, "basegigs-uploads", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "profiles/7/cv.pdf", aws.ToString(fake.input.Key))
	assert.Equal(t, "application/pdf", aws.ToString(fake.input.ContentType))
	assert.Equal(t, "%PDF", fake.body)
}

func TestS3PutPublicURL(t *testing.T) {
	s := newS3(&fakeS3{}, "uploads", "us-east-1", "http://localhost:9000/uploads/")

	url, err := s.Put(context.Background(), "a.png", "", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/uploads/a.png", url)
}

func TestS3PutError(t *testing.T) {
	s := newS3(&fakeS3{err: errors.New("access denied")}, "uploads", "us-east-1", "")

	_, err := s.Put(context.Background(), "a.png", "", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
