package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-authgate/update-cli/auth"
	"github.com/go-authgate/update-cli/distribution"
	"github.com/go-authgate/update-cli/tui"
)

// app is one wired run of the CLI.
type app struct {
	cfg    *appConfig
	d      tui.Displayer
	client *distribution.Client
	out    io.Writer
	log    *slog.Logger
}

// newApp wires token storage, the login flow and the distribution client.
func newApp(cfg *appConfig, d tui.Displayer, httpClient auth.Doer, log *slog.Logger) (*app, error) {
	backend, err := auth.NewBackend(auth.BackendConfig{
		Type:     cfg.tokenStore,
		FilePath: cfg.tokenFile,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}
	store := auth.NewStore(backend, log)

	presenter, err := newPresenter(cfg, log)
	if err != nil {
		return nil, err
	}

	authCfg := auth.DefaultConfig()
	authCfg.BaseURL = cfg.authURL
	authCfg.RedirectURI = cfg.redirectURI

	flow, err := auth.NewFlow(authCfg, httpClient, store, presenter,
		auth.WithFlowNotifier(d),
		auth.WithFlowLogger(log),
	)
	if err != nil {
		return nil, err
	}
	provider := auth.NewProvider(store, flow, auth.WithNotifier(d), auth.WithLogger(log))

	client, err := distribution.NewClient(httpClient, provider,
		distribution.WithBaseURL(cfg.apiURL),
		distribution.WithNotifier(d),
		distribution.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, d: d, client: client, out: os.Stdout, log: log}, nil
}

// newPresenter picks the login surface matching the redirect URI.
func newPresenter(cfg *appConfig, log *slog.Logger) (auth.Presenter, error) {
	if auth.IsLoopbackRedirect(cfg.redirectURI) {
		return auth.NewLoopbackPresenter(cfg.redirectURI, !cfg.noBrowser, log)
	}
	return auth.NewPastePresenter(!cfg.noBrowser, log), nil
}

func (a *app) common() distribution.CommonParams {
	return distribution.CommonParams{
		APIKey:     a.cfg.apiKey,
		Login:      a.cfg.login,
		Connection: a.cfg.connection,
	}
}

func (a *app) execute(ctx context.Context) error {
	switch {
	case a.cfg.list:
		return a.listReleases(ctx)
	case a.cfg.releaseID != "":
		return a.showRelease(ctx)
	default:
		return a.checkForUpdate(ctx)
	}
}

func (a *app) checkForUpdate(ctx context.Context) error {
	resp, err := a.client.CheckForUpdate(ctx, distribution.CheckForUpdateParams{
		CommonParams:             a.common(),
		Tag:                      a.cfg.tag,
		BinaryIdentifierOverride: a.cfg.binaryID,
		AppIDOverride:            a.cfg.appID,
	})
	if err != nil {
		return err
	}

	if resp.Update == nil {
		var current *tui.Release
		if resp.Current != nil {
			r := displayRelease(resp.Current)
			current = &r
		}
		a.d.UpToDate(current)
		return a.writeJSON(resp)
	}

	if resp.Update.DownloadRequiresLogin() && a.cfg.login < distribution.Everything {
		if resp.Update, err = a.revealDownload(ctx, resp.Update.ID); err != nil {
			return err
		}
	}

	a.d.UpdateAvailable(displayRelease(resp.Update))
	return a.writeJSON(resp)
}

func (a *app) showRelease(ctx context.Context) error {
	release, err := a.client.GetRelease(ctx, distribution.GetReleaseParams{
		CommonParams: a.common(),
		ReleaseID:    a.cfg.releaseID,
	})
	if err != nil {
		return err
	}

	if release.DownloadRequiresLogin() && a.cfg.login < distribution.Everything {
		if release, err = a.revealDownload(ctx, release.ID); err != nil {
			return err
		}
	}

	a.d.ReleaseDetails(displayRelease(release))
	return a.writeJSON(release)
}

// revealDownload fetches the release again with a token so the backend
// returns the real download location instead of a placeholder.
func (a *app) revealDownload(ctx context.Context, releaseID string) (*distribution.ReleaseInfo, error) {
	a.log.Debug("download requires login, fetching release with a token", "release", releaseID)

	params := distribution.GetReleaseParams{CommonParams: a.common(), ReleaseID: releaseID}
	params.Login = distribution.Everything
	return a.client.GetRelease(ctx, params)
}

func (a *app) listReleases(ctx context.Context) error {
	resp, err := a.client.ListReleases(ctx, distribution.ListReleasesParams{
		CommonParams:             a.common(),
		Page:                     a.cfg.page,
		BinaryIdentifierOverride: a.cfg.binaryID,
		AppIDOverride:            a.cfg.appID,
	})
	if err != nil {
		return err
	}

	builds := make([]tui.Release, 0, len(resp.Builds))
	for i := range resp.Builds {
		builds = append(builds, displayBasicRelease(&resp.Builds[i]))
	}
	a.d.ReleaseList(resp.Page, resp.TotalPages, resp.TotalBuilds, builds)
	return a.writeJSON(resp)
}

// writeJSON prints v to stdout when -json is set.
func (a *app) writeJSON(v any) error {
	if !a.cfg.jsonOutput {
		return nil
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

func displayRelease(r *distribution.ReleaseInfo) tui.Release {
	// unparseable dates render as unknown
	created, _ := r.Created()
	return tui.Release{
		ID:          r.ID,
		AppName:     r.AppName,
		Version:     r.Version,
		Tag:         r.Tag,
		DownloadURL: r.DownloadURL,
		Created:     created,
		Gated:       r.DownloadRequiresLogin(),
	}
}

func displayBasicRelease(r *distribution.ReleaseBasicInfo) tui.Release {
	// unparseable dates render as unknown
	created, _ := r.Created()
	return tui.Release{
		ID:      r.ID,
		AppName: r.AppName,
		Version: r.Version,
		Build:   r.Build,
		Tag:     r.Tag,
		Created: created,
	}
}
