package objectstore_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/book-expert/voicebatch/internal/core"
	"github.com/book-expert/voicebatch/internal/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects in memory; unimplemented calls panic via the nil interface.
type fakeS3 struct {
	s3iface.S3API

	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	putErr       error
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, input *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}

	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := aws.StringValue(input.Bucket) + "/" + aws.StringValue(input.Key)
	f.objects[key] = data
	f.contentTypes[key] = aws.StringValue(input.ContentType)

	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, input *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[aws.StringValue(input.Bucket)+"/"+aws.StringValue(input.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}

	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func TestS3ObjectStore_UploadDownload(t *testing.T) {
	t.Parallel()

	client := newFakeS3()
	store := objectstore.NewS3(client, "voice-bucket", "dialogues")

	var _ core.ObjectStore = store

	ctx := context.Background()
	require.NoError(t, store.Upload(ctx, "batch-1/NARRATOR-0.wav", []byte("RIFF")))

	assert.Contains(t, client.objects, "voice-bucket/dialogues/batch-1/NARRATOR-0.wav")
	assert.Equal(t, "audio/wav", client.contentTypes["voice-bucket/dialogues/batch-1/NARRATOR-0.wav"])

	data, err := store.Download(ctx, "batch-1/NARRATOR-0.wav")
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))

	_, err = store.Download(ctx, "batch-1/missing.wav")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestS3ObjectStore_NoPrefixAndErrors(t *testing.T) {
	t.Parallel()

	client := newFakeS3()
	store := objectstore.NewS3(client, "voice-bucket", "")

	require.NoError(t, store.Upload(context.Background(), "clip.wav", []byte("RIFF")))
	assert.Contains(t, client.objects, "voice-bucket/clip.wav")

	errDenied := errors.New("access denied")
	client.putErr = errDenied

	err := store.Upload(context.Background(), "clip.wav", []byte("RIFF"))
	require.ErrorIs(t, err, errDenied)
}
