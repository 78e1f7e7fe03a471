// README: Forecast archive: each output is stored as a JSON object in S3.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
)

type Archiver interface {
	Archive(ctx context.Context, out *Output) (string, error)
}

// S3API is the subset of the S3 client the archiver uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archiver struct {
	client S3API
	bucket string
	prefix string
}

func NewS3Archiver(client S3API, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// Archive writes the output under <prefix>/YYYY/MM/DD/forecast-<timestamp>.json and returns the key.
func (a *S3Archiver) Archive(ctx context.Context, out *Output) (string, error) {
	body, err := json.Marshal(out)
	if err != nil {
		return "", eris.Wrap(err, "forecast: encode archive")
	}
	ts := out.GeneratedAt.UTC()
	key := path.Join(a.prefix, ts.Format("2006/01/02"), fmt.Sprintf("forecast-%s.json", ts.Format("20060102T150405Z")))
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", eris.Wrapf(err, "forecast: put s3://%s/%s", a.bucket, key)
	}
	return key, nil
}
