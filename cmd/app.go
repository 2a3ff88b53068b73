package cmd

import (
	"github.com/bnema/chfctl/internal/backup"
	"github.com/bnema/chfctl/internal/catalog"
	"github.com/bnema/chfctl/internal/characters"
	"github.com/bnema/chfctl/internal/collections"
	"github.com/bnema/chfctl/internal/installer"
	"github.com/bnema/chfctl/internal/overlay"
)

// Services are built lazily from the loaded config; each command only pays
// for what it touches.

func getRepository() *characters.Repository {
	return characters.NewRepository(cfg.GamePath, getLogger())
}

func getBackups() *backup.Manager {
	return backup.NewManager(paths.BackupsDir(), backup.RealClock{}, getLogger())
}

func getCatalogClient() *catalog.Client {
	return catalog.NewClient(cfg.CatalogURL, getLogger(),
		catalog.WithRetry(cfg.MaxRetries, cfg.RetryDelay()),
	)
}

func getCatalogCache() *catalog.Cache {
	return catalog.NewCache(paths.CacheDir, getLogger())
}

func getInstaller(repo *characters.Repository) *installer.Installer {
	return installer.New(repo, getBackups(), getLogger(),
		installer.WithRetry(cfg.MaxRetries, cfg.RetryDelay()),
		installer.WithNotifier(overlay.New(cfg.OverlayPath, cfg.OverlayEnabled, getLogger())),
	)
}

// getCollections loads the collections file. A load failure is logged and
// the store starts empty.
func getCollections() *collections.Manager {
	m := collections.NewManager(paths.CollectionsFile(), getLogger())
	if err := m.Load(); err != nil {
		getLogger().Warn("Failed to load collections", "error", err)
	}
	return m
}

func getDeployer(repo *characters.Repository, m *collections.Manager) *collections.Deployer {
	return collections.NewDeployer(repo, m, getLogger())
}
