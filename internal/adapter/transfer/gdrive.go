package transfer

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	appconfig "github.com/avo-tools/sarsync/internal/config"
	"github.com/avo-tools/sarsync/internal/domain"
)

const driveFolderMimeType = "application/vnd.google-apps.folder"

// GDriveTransfer mirrors the archive into a Google Drive folder, recreating
// subdirectories as Drive folders. File checksums are kept in appProperties
// so unchanged files are skipped on re-sync.
type GDriveTransfer struct {
	service   *drive.Service
	folderID  string
	name      string
	sourceDir string

	// dir path (slash form) -> Drive folder ID, resolved lazily per run
	folderCache map[string]string
}

func NewGDrive(cfg *appconfig.TargetConfig, sourceDir string) (*GDriveTransfer, error) {
	service, err := drive.NewService(context.Background(), option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &GDriveTransfer{
		service:     service,
		folderID:    cfg.FolderID,
		name:        cfg.DisplayName(),
		sourceDir:   sourceDir,
		folderCache: make(map[string]string),
	}, nil
}

func (g *GDriveTransfer) Name() string {
	return g.name
}

func (g *GDriveTransfer) Type() string {
	return "gdrive"
}

func (g *GDriveTransfer) Mirror(ctx context.Context, snapshot *domain.Snapshot) (*domain.TransferReport, error) {
	start := time.Now()
	report := domain.NewTransferReport()

	for _, file := range snapshot.Files {
		uploaded, err := g.mirrorFile(ctx, file)
		if err != nil {
			report.Pending = append(report.Pending, remaining(snapshot, report.Confirmed)...)
			report.Duration = time.Since(start)
			return report, fmt.Errorf("upload %s to gdrive: %w", file.RelPath, err)
		}
		if uploaded {
			report.Transferred++
		}
		report.Confirmed[file.RelPath] = true
	}

	report.Duration = time.Since(start)
	return report, nil
}

func (g *GDriveTransfer) mirrorFile(ctx context.Context, file domain.ArchiveFile) (bool, error) {
	dir, base := path.Split(file.RelPath)
	parentID, err := g.ensureFolder(ctx, path.Clean(dir))
	if err != nil {
		return false, err
	}

	existing, err := g.findFile(ctx, parentID, base)
	if err != nil {
		return false, err
	}
	if existing != nil && existing.AppProperties[checksumMetadataKey] == file.Checksum {
		return false, nil
	}

	f, err := os.Open(filepath.Join(g.sourceDir, filepath.FromSlash(file.RelPath)))
	if err != nil {
		return false, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	props := map[string]string{checksumMetadataKey: file.Checksum}
	if existing != nil {
		_, err = g.service.Files.Update(existing.Id, &drive.File{AppProperties: props}).
			Media(f).
			Context(ctx).
			Do()
	} else {
		_, err = g.service.Files.Create(&drive.File{
			Name:          base,
			Parents:       []string{parentID},
			AppProperties: props,
		}).
			Media(f).
			Context(ctx).
			Do()
	}
	if err != nil {
		return false, fmt.Errorf("failed to upload to gdrive: %w", err)
	}

	return true, nil
}

// ensureFolder resolves the Drive folder mirroring dirPath, creating missing
// levels under the configured root.
func (g *GDriveTransfer) ensureFolder(ctx context.Context, dirPath string) (string, error) {
	if dirPath == "." || dirPath == "" || dirPath == "/" {
		return g.folderID, nil
	}
	if id, ok := g.folderCache[dirPath]; ok {
		return id, nil
	}

	parentID, err := g.ensureFolder(ctx, path.Dir(dirPath))
	if err != nil {
		return "", err
	}
	name := path.Base(dirPath)

	query := fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
		parentID, name, driveFolderMimeType)
	list, err := g.service.Files.List().
		Q(query).
		Fields("files(id)").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up folder %s: %w", dirPath, err)
	}

	var id string
	if len(list.Files) > 0 {
		id = list.Files[0].Id
	} else {
		folder, err := g.service.Files.Create(&drive.File{
			Name:     name,
			MimeType: driveFolderMimeType,
			Parents:  []string{parentID},
		}).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("failed to create folder %s: %w", dirPath, err)
		}
		id = folder.Id
	}

	g.folderCache[dirPath] = id
	return id, nil
}

func (g *GDriveTransfer) findFile(ctx context.Context, parentID, name string) (*drive.File, error) {
	query := fmt.Sprintf("'%s' in parents and name='%s' and mimeType!='%s' and trashed=false",
		parentID, name, driveFolderMimeType)
	list, err := g.service.Files.List().
		Q(query).
		Fields("files(id, name, appProperties)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to find file: %w", err)
	}
	if len(list.Files) == 0 {
		return nil, nil
	}
	return list.Files[0], nil
}

// ListOlderThan returns files under the root folder created before the cutoff.
func (g *GDriveTransfer) ListOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := fmt.Sprintf("'%s' in parents and trashed=false and mimeType!='%s' and createdTime < '%s'",
		g.folderID, driveFolderMimeType, cutoff.Format(time.RFC3339))

	list, err := g.service.Files.List().
		Q(query).
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list old files: %w", err)
	}

	var names []string
	for _, f := range list.Files {
		names = append(names, f.Name)
	}
	return names, nil
}

func (g *GDriveTransfer) Delete(ctx context.Context, remoteName string) error {
	existing, err := g.findFile(ctx, g.folderID, remoteName)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("file not found: %s", remoteName)
	}

	if err := g.service.Files.Delete(existing.Id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
