package driver

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"printfleet/internal/model"
	"printfleet/internal/protocol"
)

var (
	ErrFetchFailed   = errors.New("artifact fetch failed")
	ErrBadArchive    = errors.New("artifact is not a valid zip archive")
	ErrNoDescriptor  = errors.New("no descriptor file in archive")
	ErrUnsafeArchive = errors.New("archive entry escapes extraction directory")
)

// Job describes one provisioning attempt. The artifact is fetched by URL with
// the agent's bearer token instead of arriving inlined in the command, so the
// whole driver never sits in a command envelope.
type Job struct {
	DriverURL    string
	DriverName   string
	AuthToken    string
	PrinterIP    string
	Manufacturer string
	Model        string
}

// Pipeline runs fetch, verify, unpack, descriptor selection, and the platform
// installer for one job. It always produces a structured result: the session
// protocol has no fault channel for install commands, so faults must not
// escape as errors.
type Pipeline struct {
	client    *http.Client
	installer Installer
	workDir   string
	log       zerolog.Logger
}

func NewPipeline(installer Installer, workDir string, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		client:    &http.Client{Timeout: 2 * time.Minute},
		installer: installer,
		workDir:   workDir,
		log:       log.With().Str("component", "provisioning").Logger(),
	}
}

// Install runs one provisioning attempt end to end. The scoped extraction
// directory is removed on every exit path.
func (p *Pipeline) Install(ctx context.Context, job Job) model.InstallResult {
	result, err := p.install(ctx, job)
	if err != nil {
		p.log.Error().
			Str("printer_ip", job.PrinterIP).
			Str("model", job.Model).
			Err(err).
			Msg("provisioning attempt failed")
		return failure(job, err)
	}
	return result
}

func (p *Pipeline) install(ctx context.Context, job Job) (model.InstallResult, error) {
	tmpDir, err := os.MkdirTemp(p.workDir, "driver-*")
	if err != nil {
		return model.InstallResult{}, protocol.NewKindError(protocol.ErrKindProvisioning,
			fmt.Errorf("create work dir: %w", err))
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			p.log.Warn().Str("dir", tmpDir).Err(rmErr).Msg("work dir cleanup failed")
		}
	}()

	archivePath, err := p.fetch(ctx, job, tmpDir)
	if err != nil {
		return model.InstallResult{}, err
	}

	extractDir := filepath.Join(tmpDir, "extracted")
	if err := extractArchive(archivePath, extractDir); err != nil {
		return model.InstallResult{}, err
	}

	descriptor, err := selectDescriptor(extractDir, job.Model, p.installer.DescriptorExts())
	if err != nil {
		return model.InstallResult{}, err
	}

	p.log.Info().
		Str("printer_ip", job.PrinterIP).
		Str("descriptor", filepath.Base(descriptor)).
		Msg("installing driver")

	if err := p.installer.Install(ctx, descriptor, job.PrinterIP, job.Manufacturer, job.Model); err != nil {
		return model.InstallResult{}, protocol.NewKindError(protocol.ErrKindProvisioning, err)
	}

	return model.InstallResult{
		Success:      true,
		Message:      fmt.Sprintf("driver %s installed for %s", filepath.Base(descriptor), job.PrinterIP),
		PrinterIP:    job.PrinterIP,
		Manufacturer: job.Manufacturer,
		Model:        job.Model,
	}, nil
}

// fetch downloads the artifact and persists it inside the scoped temp dir.
// Any non-2xx response is fatal for the attempt.
func (p *Pipeline) fetch(ctx context.Context, job Job, tmpDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.DriverURL, nil)
	if err != nil {
		return "", protocol.NewKindError(protocol.ErrKindValidation,
			fmt.Errorf("bad artifact url: %w", err))
	}
	if job.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+job.AuthToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", protocol.NewKindError(protocol.ErrKindTransport,
			fmt.Errorf("%w: %v", ErrFetchFailed, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", protocol.NewKindError(protocol.ErrKindTransport,
			fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode))
	}

	name := job.DriverName
	if name == "" {
		name = "driver.zip"
	}
	archivePath := filepath.Join(tmpDir, filepath.Base(name))

	out, err := os.Create(archivePath)
	if err != nil {
		return "", protocol.NewKindError(protocol.ErrKindProvisioning, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return "", protocol.NewKindError(protocol.ErrKindTransport,
			fmt.Errorf("%w: %v", ErrFetchFailed, err))
	}
	if err := out.Close(); err != nil {
		return "", protocol.NewKindError(protocol.ErrKindProvisioning, err)
	}
	return archivePath, nil
}

// extractArchive validates the archive and unpacks it into dir. A file that
// is not a well-formed zip is a distinct, reported error kind.
func extractArchive(archivePath, dir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		if errors.Is(err, zip.ErrInsecurePath) {
			_ = reader.Close()
			return protocol.NewKindError(protocol.ErrKindValidation,
				fmt.Errorf("%w: %v", ErrUnsafeArchive, err))
		}
		return protocol.NewKindError(protocol.ErrKindValidation,
			fmt.Errorf("%w: %v", ErrBadArchive, err))
	}
	defer func() { _ = reader.Close() }()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return protocol.NewKindError(protocol.ErrKindProvisioning, err)
	}

	for _, file := range reader.File {
		if err := extractEntry(file, dir); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(file *zip.File, dir string) error {
	dest := filepath.Join(dir, file.Name)
	if !strings.HasPrefix(dest, filepath.Clean(dir)+string(os.PathSeparator)) {
		return protocol.NewKindError(protocol.ErrKindValidation,
			fmt.Errorf("%w: %s", ErrUnsafeArchive, file.Name))
	}

	if file.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return protocol.NewKindError(protocol.ErrKindProvisioning, err)
	}

	in, err := file.Open()
	if err != nil {
		return protocol.NewKindError(protocol.ErrKindValidation,
			fmt.Errorf("%w: %v", ErrBadArchive, err))
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return protocol.NewKindError(protocol.ErrKindProvisioning, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return protocol.NewKindError(protocol.ErrKindProvisioning, err)
	}
	return out.Close()
}

// selectDescriptor finds candidate descriptor files under dir by
// case-insensitive extension. With multiple candidates it prefers one whose
// filename contains the target model; otherwise it takes the largest file.
// The largest-file fallback is a deliberate heuristic: the primary descriptor
// is usually the biggest one in a driver package.
func selectDescriptor(dir, targetModel string, exts []string) (string, error) {
	type candidate struct {
		path string
		size int64
	}
	var candidates []candidate

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, want := range exts {
			if ext == want {
				candidates = append(candidates, candidate{path: path, size: info.Size()})
				break
			}
		}
		return nil
	})
	if err != nil {
		return "", protocol.NewKindError(protocol.ErrKindProvisioning, err)
	}

	if len(candidates) == 0 {
		return "", protocol.NewKindError(protocol.ErrKindProvisioning,
			fmt.Errorf("%w (looked for %s)", ErrNoDescriptor, strings.Join(exts, ", ")))
	}

	if targetModel != "" {
		needle := strings.ToLower(targetModel)
		for _, c := range candidates {
			if strings.Contains(strings.ToLower(filepath.Base(c.path)), needle) {
				return c.path, nil
			}
		}
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.size > best.size {
			best = c
		}
	}
	return best.path, nil
}

func failure(job Job, err error) model.InstallResult {
	return model.InstallResult{
		Success:      false,
		Message:      err.Error(),
		PrinterIP:    job.PrinterIP,
		Manufacturer: job.Manufacturer,
		Model:        job.Model,
	}
}
