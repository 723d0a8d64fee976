// Package bootstrap opens the backends selected by configuration.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"resort_hub/internal/adapters/cloudinary"
	"resort_hub/internal/adapters/gcsmedia"
	redisad "resort_hub/internal/adapters/redis"
	"resort_hub/internal/adapters/s3media"
	"resort_hub/internal/domain"
	"resort_hub/internal/shared"
	"resort_hub/internal/storage/memory"
	"resort_hub/internal/storage/mongostore"
	mysqlrepo "resort_hub/internal/storage/mysql"
)

type Stores struct {
	Resorts domain.ResortRepository
	Files   domain.FileRepository
	Reviews domain.ReviewRepository
	Admins  domain.AdminRepository
	Close   func()
}

type repository interface {
	domain.ResortRepository
	domain.FileRepository
	domain.ReviewRepository
	domain.AdminRepository
}

func allOf(r repository, closeFn func()) Stores {
	return Stores{Resorts: r, Files: r, Reviews: r, Admins: r, Close: closeFn}
}

// OpenStore connects to STORE_BACKEND.
func OpenStore(ctx context.Context, cfg shared.Config) (Stores, error) {
	switch cfg.StoreBackend {
	case "mongo":
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		st, err := mongostore.New(cctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return Stores{}, err
		}
		if err := st.EnsureIndexes(cctx); err != nil {
			_ = st.Close(context.Background())
			return Stores{}, err
		}
		return allOf(st, func() { _ = st.Close(context.Background()) }), nil
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return Stores{}, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return Stores{}, err
		}
		return allOf(mysqlrepo.New(db), func() { _ = db.Close() }), nil
	case "memory":
		log.Warn().Msg("in-memory store: data is lost on restart")
		return allOf(memory.New(), func() {}), nil
	}
	return Stores{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}

type cacheCounter interface {
	domain.Cache
	domain.Counter
}

// OpenCache falls back to a process-local cache when Redis is not configured
// or not reachable.
func OpenCache(ctx context.Context, cfg shared.Config) (domain.Cache, domain.Counter, func()) {
	var c cacheCounter = memory.NewCache()
	closeFn := func() {}
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; using in-memory cache")
			_ = rc.Close()
		} else {
			c = rc
			closeFn = func() { _ = rc.Close() }
		}
	}
	return c, c, closeFn
}

// OpenMedia returns a nil store for MEDIA_BACKEND=none; remote deletes are
// then skipped.
func OpenMedia(ctx context.Context, cfg shared.Config) (domain.MediaStore, func(), error) {
	noop := func() {}
	switch cfg.MediaBackend {
	case "cloudinary":
		c, err := cloudinary.New(cfg.CloudinaryBase, cfg.CloudinaryCloud, cfg.CloudinaryKey, cfg.CloudinarySecret, cfg.CloudinaryRPS)
		if err != nil {
			return nil, noop, err
		}
		return c, noop, nil
	case "s3":
		s, err := s3media.New(ctx, s3media.Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
			Prefix:    cfg.S3Prefix,
		})
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case "gcs":
		s, err := gcsmedia.New(ctx, gcsmedia.Options{
			Bucket:          cfg.GCSBucket,
			Prefix:          cfg.GCSPrefix,
			CredentialsJSON: cfg.GCSCredentials,
			Endpoint:        cfg.GCSEndpoint,
		})
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil
	case "none", "":
		log.Warn().Msg("MEDIA_BACKEND=none: remote media is never deleted")
		return nil, noop, nil
	}
	return nil, noop, fmt.Errorf("unknown MEDIA_BACKEND %q", cfg.MediaBackend)
}
