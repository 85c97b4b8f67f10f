package exchange

import (
	"context"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	sserr "github.com/StricklySoft/stricklysoft-auth/pkg/errors"
)

// ObjectSession returns an S3-compatible object storage client
// authenticated with a credential exchanged for the identity on the
// context. The session uses static signature-v4 credentials including the
// session token, so it stops working when the credential expires; callers
// performing long-running work should request a fresh session rather than
// hold one.
//
// Requires [Config.ObjectEndpoint] to be set.
func (s *Service) ObjectSession(ctx context.Context) (*minio.Client, error) {
	if s.objectEndpoint == "" {
		return nil, sserr.New(sserr.CodeMissingConfig,
			"exchange: object storage endpoint is not configured")
	}

	cred, err := s.GetCredential(ctx)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(s.objectEndpoint, &minio.Options{
		Creds: credentials.NewStaticV4(
			cred.AccessKeyID,
			cred.SecretKey.Value(),
			cred.SessionToken.Value(),
		),
		Secure: s.objectUseSSL,
	})
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeRequestFailed,
			"exchange: failed to build the object storage session")
	}
	return client, nil
}
