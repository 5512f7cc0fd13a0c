package upload

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Sharer makes a local file reachable by URL.
type Sharer interface {
	Share(ctx context.Context, path string) (id, url string, err error)
}

// Drive shares files through Google Drive so Instagram can fetch them.
type Drive struct {
	svc      *drive.Service
	folderID string
	log      *slog.Logger
}

// NewDrive creates the service. Extra options are for tests.
func NewDrive(ctx context.Context, client *http.Client, folderID string, opts ...option.ClientOption) (*Drive, error) {
	svc, err := drive.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return &Drive{svc: svc, folderID: folderID, log: slog.Default().With("component", "upload", "platform", "drive")}, nil
}

// Share uploads path and grants anyone-with-link read access.
func (d *Drive) Share(ctx context.Context, path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	meta := &drive.File{Name: filepath.Base(path), MimeType: "video/mp4"}
	if d.folderID != "" {
		meta.Parents = []string{d.folderID}
	}
	created, err := d.svc.Files.Create(meta).Media(f).Fields("id", "webContentLink").Context(ctx).Do()
	if err != nil {
		return "", "", fmt.Errorf("drive upload: %w", err)
	}

	perm := &drive.Permission{Type: "anyone", Role: "reader"}
	if _, err := d.svc.Permissions.Create(created.Id, perm).Context(ctx).Do(); err != nil {
		return "", "", fmt.Errorf("drive share %s: %w", created.Id, err)
	}
	link := created.WebContentLink
	if link == "" {
		link = fmt.Sprintf("https://drive.google.com/uc?export=download&id=%s", created.Id)
	}
	d.log.Info("shared on drive", "file_id", created.Id)
	return created.Id, link, nil
}
