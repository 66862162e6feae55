package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/encoder"
	"github.com/kozaktomas/face-auth/internal/verifier"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <directory>",
	Short: "Bulk-enroll users from a directory of face images",
	Long: `Enroll every image in a directory. The file name without its extension is
the user ID, so alice.jpg enrolls user "alice". Images go through the same
encoder and validation as POST /api/enroll.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Int("concurrency", constants.EnrollWorkerPoolSize, "Number of parallel encoder requests")
	enrollCmd.Flags().Bool("dry-run", false, "List the files that would be enrolled without enrolling them")
}

// enrollFile is one image to enroll.
type enrollFile struct {
	path   string
	userID string
}

var enrollExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// collectEnrollFiles lists enrollable images in dir, sorted by name.
func collectEnrollFiles(dir string) ([]enrollFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var files []enrollFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !slices.Contains(enrollExtensions, ext) {
			continue
		}
		userID := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if userID == "" {
			continue
		}
		files = append(files, enrollFile{path: filepath.Join(dir, e.Name()), userID: userID})
	}
	return files, nil
}

// enrollOne reads, sniffs and enrolls a single file.
func enrollOne(ctx context.Context, v *verifier.Verifier, f enrollFile) (*verifier.EnrollmentOutcome, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	contentType := ""
	if info, err := encoder.Inspect(data); err == nil {
		contentType = info.MIMEType()
	}
	return v.Enroll(ctx, verifier.EnrollRequest{
		Identity:    f.userID,
		ContentType: contentType,
		Image:       data,
	})
}

func runEnroll(cmd *cobra.Command, args []string) error {
	concurrency := mustGetInt(cmd, "concurrency")
	if concurrency < 1 {
		concurrency = 1
	}
	dryRun := mustGetBool(cmd, "dry-run")
	out := cmd.OutOrStdout()

	files, err := collectEnrollFiles(args[0])
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "No images found.")
		return nil
	}
	if dryRun {
		for _, f := range files {
			fmt.Fprintf(out, "%s -> %s\n", f.path, f.userID)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()

	v, err := a.newVerifier()
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var (
		mu           sync.Mutex
		successCount int
		notPersisted int
		failures     []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, f := range files {
		g.Go(func() error {
			defer func() { _ = bar.Add(1) }()
			if gctx.Err() != nil {
				return gctx.Err()
			}

			outcome, err := enrollOne(gctx, v, f)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %s", filepath.Base(f.path), enrollFailure(err)))
				return nil
			}
			successCount++
			if !outcome.Persisted {
				notPersisted++
			}
			return nil
		})
	}
	waitErr := g.Wait()
	fmt.Fprintln(out)

	slices.Sort(failures)
	for _, f := range failures {
		fmt.Fprintf(out, "  failed %s\n", f)
	}
	fmt.Fprintf(out, "\nCompleted: %d enrolled, %d failed\n", successCount, len(failures))
	if notPersisted > 0 {
		fmt.Fprintf(out, "Warning: %d enrollments were not persisted\n", notPersisted)
	}
	fmt.Fprintf(out, "Total users: %d\n", a.store.Count())

	if waitErr != nil {
		return fmt.Errorf("enrollment interrupted: %w", waitErr)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d images failed", len(failures), len(files))
	}
	return nil
}

// enrollFailure describes an error the way the API would report it, keeping
// internal detail for internal errors since this is an operator tool.
func enrollFailure(err error) string {
	if verifier.KindOf(err) == verifier.KindInternal {
		return err.Error()
	}
	return verifier.Message(err)
}
