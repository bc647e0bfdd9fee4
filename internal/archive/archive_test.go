package archive_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"labelagent/internal/archive"
)

func TestPut(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock S3 client
	api := NewMockPutObjectAPI(ctrl)

	// Assert: one upload to the bucket and key
	api.EXPECT().
		PutObject(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
			require.Equal(t, "labels", aws.ToString(in.Bucket))
			require.Equal(t, "photos/2025/05/abc.png", aws.ToString(in.Key))
			require.Equal(t, "image/png", aws.ToString(in.ContentType))
			b, err := io.ReadAll(in.Body)
			require.NoError(t, err)
			require.Equal(t, "img", string(b))
			return &s3.PutObjectOutput{}, nil
		})

	a := archive.New(api, "labels", "/photos/")

	// Act
	key := a.KeyFor("abc", "IMG.PNG")
	url, err := a.Put(t.Context(), key, "image/png", []byte("img"))

	// Assert
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, "photos/"))
	require.True(t, strings.HasSuffix(key, "/abc.png"))
	require.Equal(t, "s3://labels/"+key, url)
}

func TestPut_Error(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	api := NewMockPutObjectAPI(ctrl)
	api.EXPECT().PutObject(gomock.Any(), gomock.Any()).Return(nil, errors.New("access denied"))

	_, err := archive.New(api, "labels", "photos").Put(t.Context(), "photos/x.jpg", "image/jpeg", nil)
	require.ErrorContains(t, err, "access denied")
}

func TestKeyFor_DefaultsExtension(t *testing.T) {
	t.Parallel()

	key := archive.New(nil, "labels", "").KeyFor("abc", "upload")
	require.True(t, strings.HasSuffix(key, "/abc.jpg"))
	require.False(t, strings.HasPrefix(key, "/"))
}
