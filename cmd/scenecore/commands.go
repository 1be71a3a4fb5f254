package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"scenecore/internal/backend/chipmunk"
	"scenecore/internal/blob"
	"scenecore/internal/core"
	"scenecore/internal/infra/persistence/file"
	"scenecore/internal/templates"
	"scenecore/pkg/domain"
)

func (a *app) serviceOptions(extra ...core.Option) []core.Option {
	return append([]core.Option{core.WithLogger(a.logger)}, extra...)
}

func (a *app) openStore(ctx context.Context) (domain.SnapshotStore, func(), error) {
	s := a.cfg.Storage
	store, err := core.OpenSnapshotStore(ctx, core.StorageOptions{
		Driver:      core.StorageDriver(s.Driver),
		FileDir:     s.FileDir,
		SQLitePath:  s.SQLitePath,
		PostgresDSN: s.PostgresDSN,
	})
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if c, ok := store.(io.Closer); ok {
			if err := c.Close(); err != nil {
				a.logger.Warn("close snapshot store", zap.Error(err))
			}
		}
	}
	return store, closer, nil
}

func (a *app) openBlob(ctx context.Context) (blob.Store, error) {
	b := a.cfg.Blob
	return blob.Open(ctx, blob.Options{
		Driver:      blob.Driver(b.Driver),
		FSRoot:      b.FSRoot,
		S3Bucket:    b.S3Bucket,
		S3Region:    b.S3Region,
		S3Endpoint:  b.S3Endpoint,
		S3PathStyle: b.S3PathStyle,
	})
}

// loadFile replays the snapshot file at path on a fresh chipmunk space.
func (a *app) loadFile(ctx context.Context, path string, opts ...core.Option) (*core.Service, error) {
	snap, err := file.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return core.Load(ctx, snap, chipmunk.New(), a.serviceOptions(opts...)...)
}

func printSummary(w io.Writer, svc *core.Service) error {
	p := svc.Project()
	all := svc.AvatarCount()
	manual := len(svc.ListAvatars(false))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := []struct {
		label string
		value any
	}{
		{"project", fmt.Sprintf("%s (%dD, %s)", p.Name, p.Dimension, p.Preferences.UnitSystem)},
		{"materials", len(svc.ListMaterials())},
		{"models", len(svc.ListModels())},
		{"avatars", fmt.Sprintf("%d (%d generated)", all, all-manual)},
		{"contact laws", len(svc.ListContactLaws())},
		{"visibility rules", len(svc.ListVisibilityRules())},
		{"dof operations", len(svc.ListDOFOperations())},
		{"loops", len(svc.ListLoops())},
		{"granulo generations", len(svc.ListGranulos())},
		{"postpro commands", len(svc.ListPostProCommands())},
		{"groups", len(svc.ListGroups())},
		{"warnings", len(svc.Warnings())},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%v\n", r.label, r.value); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, warning := range svc.Warnings() {
		if _, err := fmt.Fprintf(w, "  %s\n", warning); err != nil {
			return err
		}
	}
	return nil
}

func runInspect(ctx context.Context, a *app, args []string) error {
	fs := subFlags("inspect")
	if err := parseSub(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: inspect <snapshot.json>", errUsage)
	}
	svc, err := a.loadFile(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	return printSummary(a.stdout, svc)
}

func runReplay(ctx context.Context, a *app, args []string) error {
	fs := subFlags("replay")
	project := fs.String("project", a.cfg.Project.Name, "project to replay")
	in := fs.String("in", "", "import this snapshot file instead of loading from the store")
	out := fs.String("out", "", "also export the replayed snapshot to this file")
	if err := parseSub(fs, args); err != nil {
		return err
	}
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var svc *core.Service
	if *in != "" {
		svc, err = a.loadFile(ctx, *in)
	} else {
		svc, err = core.LoadFrom(ctx, store, *project, chipmunk.New(), a.serviceOptions()...)
	}
	if err != nil {
		return err
	}
	snap, err := core.SaveTo(ctx, svc, store)
	if err != nil {
		return err
	}
	if *out != "" {
		if err := file.WriteFile(*out, snap); err != nil {
			return err
		}
	}
	a.logger.Info("replayed",
		zap.String("project", snap.ProjectName),
		zap.String("driver", store.Driver()),
		zap.Int("avatars", svc.AvatarCount()),
		zap.Int("warnings", len(svc.Warnings())))
	_, err = fmt.Fprintf(a.stdout, "replayed %s: %d avatars, %d warnings\n", snap.ProjectName, svc.AvatarCount(), len(svc.Warnings()))
	return err
}

func runBackup(ctx context.Context, a *app, args []string) error {
	fs := subFlags("backup")
	project := fs.String("project", a.cfg.Project.Name, "project to back up")
	list := fs.Bool("list", false, "list existing backups")
	restore := fs.String("restore", "", "restore the backup stored under this key")
	if err := parseSub(fs, args); err != nil {
		return err
	}
	blobs, err := a.openBlob(ctx)
	if err != nil {
		return err
	}

	if *list {
		infos, err := core.ListBackups(ctx, blobs, *project)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		for _, info := range infos {
			if _, err := fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Key, info.Size, info.LastModified.UTC().Format(time.RFC3339)); err != nil {
				return err
			}
		}
		return tw.Flush()
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if *restore != "" {
		svc, err := core.RestoreBackup(ctx, blobs, *restore, chipmunk.New(), a.serviceOptions()...)
		if err != nil {
			return err
		}
		snap, err := core.SaveTo(ctx, svc, store)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(a.stdout, "restored %s into %s\n", *restore, snap.ProjectName)
		return err
	}

	svc, err := core.LoadFrom(ctx, store, *project, chipmunk.New(), a.serviceOptions()...)
	if err != nil {
		return err
	}
	info, err := core.Backup(ctx, svc, blobs)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, info.Key)
	return err
}

func runTemplates(_ context.Context, a *app, args []string) error {
	fs := subFlags("templates")
	dim := fs.Int("dim", a.cfg.Project.Dimension, "dimension (2 or 3)")
	show := fs.String("show", "", "print the avatar record built from this template")
	material := fs.String("material", "TDURx", "material used with -show")
	model := fs.String("model", "rigid", "model used with -show")
	if err := parseSub(fs, args); err != nil {
		return err
	}
	cat := templates.Default()

	if *show != "" {
		av, err := cat.Instantiate(*show, *dim, make([]float64, *dim), *material, *model, "", nil)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(av, "", "    ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.stdout, string(data))
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, t := range cat.List(*dim) {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Category, t.Name, t.Kind, t.Description); err != nil {
			return err
		}
	}
	return tw.Flush()
}
