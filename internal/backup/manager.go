package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

const (
	MetadataFile = "backup_metadata.json"
	Prefix       = "deskbank_backup_"
	PreRestore   = "pre_restore_backup_"
	stampLayout  = "20060102_150405"
)

var ErrNotFound = errors.New("backup not found")

type Metadata struct {
	BackupDate      time.Time `json:"backup_date"`
	BackupName      string    `json:"backup_name"`
	SourceDirectory string    `json:"source_directory"`
	Version         string    `json:"deskbank_version"`
	BackupType      string    `json:"backup_type"`
}

type Info struct {
	Filename string    `json:"filename"`
	Path     string    `json:"filepath"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
	Metadata *Metadata `json:"metadata"`
}

type Verification struct {
	Valid     bool      `json:"is_valid"`
	Error     string    `json:"error,omitempty"`
	Metadata  *Metadata `json:"metadata"`
	FileCount int       `json:"file_count"`
	TotalSize uint64    `json:"total_size"`
}

// Manager writes zip snapshots of the data directory into its own directory.
type Manager struct {
	dir     string
	version string
	now     func() time.Time
}

func NewManager(dir, version string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return &Manager{dir: dir, version: version, now: time.Now}, nil
}

func (m *Manager) Dir() string { return m.dir }

// Create zips every file under dataDir, skipping the backup directory, and
// adds a metadata entry. An empty name becomes deskbank_backup_<timestamp>.
// Existing archives are never overwritten: a taken name gets a _2, _3...
// suffix.
func (m *Manager) Create(dataDir, name string) (string, error) {
	if name == "" {
		name = Prefix + m.now().Format(stampLayout)
	}
	base := name
	target := filepath.Join(m.dir, name+".zip")
	for n := 2; ; n++ {
		if _, err := os.Stat(target); err != nil {
			break
		}
		name = fmt.Sprintf("%s_%d", base, n)
		target = filepath.Join(m.dir, name+".zip")
	}

	if err := m.write(dataDir, name, target); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("backup %s: %w", name, err)
	}
	return target, nil
}

func (m *Manager) write(dataDir, name, target string) error {
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	backupDir, _ := filepath.Abs(m.dir)

	err = filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if abs, _ := filepath.Abs(path); abs == backupDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(dataDir, path)
		if err != nil {
			return err
		}
		return addFile(zw, path, filepath.ToSlash(rel))
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	meta, err := json.MarshalIndent(Metadata{
		BackupDate:      m.now(),
		BackupName:      name,
		SourceDirectory: dataDir,
		Version:         m.version,
		BackupType:      "full",
	}, "", "  ")
	if err != nil {
		return err
	}
	w, err := zw.Create(MetadataFile)
	if err != nil {
		return err
	}
	if _, err := w.Write(meta); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: time.Now()})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

// Restore takes a pre-restore backup of dataDir, replaces its files with
// the archive content and drops the metadata entry. The backup directory is
// left in place. It returns the pre-restore archive, or "" when dataDir did
// not exist yet.
func (m *Manager) Restore(backupFile, dataDir string) (string, error) {
	zr, err := zip.OpenReader(backupFile)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", backupFile, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("open %s: %w", backupFile, err)
	}
	defer zr.Close()

	root, _ := filepath.Abs(dataDir)
	for _, zf := range zr.File {
		dest := filepath.Join(root, filepath.FromSlash(zf.Name))
		if !strings.HasPrefix(dest, root+string(os.PathSeparator)) {
			return "", fmt.Errorf("restore %s: illegal path %q", backupFile, zf.Name)
		}
	}

	var saved string
	if _, err := os.Stat(dataDir); err == nil {
		saved, err = m.Create(dataDir, PreRestore+m.now().Format(stampLayout))
		if err != nil {
			return "", fmt.Errorf("save existing data: %w", err)
		}
		log.Printf("backup: saved existing data to %s", saved)
		if err := m.clear(dataDir); err != nil {
			return saved, err
		}
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return saved, err
	}

	for _, zf := range zr.File {
		if zf.Name == MetadataFile || zf.FileInfo().IsDir() {
			continue
		}
		if err := extract(zf, filepath.Join(root, filepath.FromSlash(zf.Name))); err != nil {
			return saved, fmt.Errorf("restore %s: %w", zf.Name, err)
		}
	}
	return saved, nil
}

// clear removes the content of dataDir except the backup directory.
func (m *Manager) clear(dataDir string) error {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return err
	}
	backupDir, _ := filepath.Abs(m.dir)
	for _, e := range entries {
		path := filepath.Join(dataDir, e.Name())
		if abs, _ := filepath.Abs(path); abs == backupDir {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return err
		}
	}
	return nil
}

func extract(zf *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// List returns every backup, newest first. Metadata is nil when unreadable.
func (m *Manager) List() ([]Info, error) {
	matches, err := filepath.Glob(filepath.Join(m.dir, "*.zip"))
	if err != nil {
		return nil, err
	}
	var out []Info
	for _, path := range matches {
		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		info := Info{
			Filename: filepath.Base(path),
			Path:     path,
			Size:     st.Size(),
			Created:  st.ModTime(),
		}
		if meta, err := readMetadata(path); err == nil {
			info.Metadata = meta
		}
		out = append(out, info)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return created(out[i]).After(created(out[j]))
	})
	return out, nil
}

// created prefers the recorded backup date over the file time.
func created(i Info) time.Time {
	if i.Metadata != nil && !i.Metadata.BackupDate.IsZero() {
		return i.Metadata.BackupDate
	}
	return i.Created
}

func readMetadata(path string) (*Metadata, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return metadataOf(&zr.Reader)
}

func metadataOf(zr *zip.Reader) (*Metadata, error) {
	for _, zf := range zr.File {
		if zf.Name != MetadataFile {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		var meta Metadata
		if err := json.NewDecoder(rc).Decode(&meta); err != nil {
			return nil, err
		}
		return &meta, nil
	}
	return nil, fmt.Errorf("%s missing", MetadataFile)
}

// Delete removes one backup by file name.
func (m *Manager) Delete(filename string) error {
	if filename != filepath.Base(filename) {
		return fmt.Errorf("invalid backup name %q", filename)
	}
	err := os.Remove(filepath.Join(m.dir, filename))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", filename, ErrNotFound)
	}
	return err
}

// Cleanup keeps the newest keep backups and returns the deleted file names.
func (m *Manager) Cleanup(keep int) ([]string, error) {
	backups, err := m.List()
	if err != nil {
		return nil, err
	}
	var deleted []string
	for i := keep; i < len(backups); i++ {
		if err := m.Delete(backups[i].Filename); err != nil {
			log.Printf("backup: cleanup %s: %v", backups[i].Filename, err)
			continue
		}
		deleted = append(deleted, backups[i].Filename)
	}
	return deleted, nil
}

// Verify reads every entry of the archive and reports its content.
func (m *Manager) Verify(backupFile string) Verification {
	var v Verification
	zr, err := zip.OpenReader(backupFile)
	if errors.Is(err, fs.ErrNotExist) {
		v.Error = "backup file not found"
		return v
	}
	if err != nil {
		v.Error = "corrupted backup file: " + err.Error()
		return v
	}
	defer zr.Close()

	for _, zf := range zr.File {
		rc, err := zf.Open()
		if err != nil {
			v.Error = fmt.Sprintf("%s: %v", zf.Name, err)
			return v
		}
		_, err = io.Copy(io.Discard, rc)
		rc.Close()
		if err != nil {
			v.Error = fmt.Sprintf("%s: %v", zf.Name, err)
			return v
		}
		v.FileCount++
		v.TotalSize += zf.UncompressedSize64
	}
	if meta, err := metadataOf(&zr.Reader); err == nil {
		v.Metadata = meta
	}
	v.Valid = true
	return v
}

// FormatSize renders a byte count as "12.3 KB".
func FormatSize(n int64) string {
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f TB", size)
}
