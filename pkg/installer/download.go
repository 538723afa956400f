package installer

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pterm/pterm"

	"github.com/bobvm/bob/pkg/errors"
	"github.com/bobvm/bob/pkg/logging"
)

// httpClient is used for artifact downloads. Release assets redirect
// to a CDN, so redirects stay enabled.
var httpClient = &http.Client{Timeout: 30 * time.Minute}

// download fetches url straight to dest. The file is written under its
// final name; verification decides afterwards whether it survives, and
// partial downloads are simply overwritten on the next run.
func (i *Installer) download(ctx context.Context, url, dest string) error {
	logger := logging.GetLogger("installer")
	logger.Info().Str("url", url).Msg("Downloading")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "cannot build download request")
	}
	req.Header.Set("User-Agent", "bob")

	resp, err := httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, errors.ErrNetwork, "download of %s failed", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errors.Newf(errors.ErrNotFound, "%s does not exist upstream", url)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.ErrNetwork, "download of %s failed with status %d", url, resp.StatusCode)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileCreate, "cannot create %s", dest)
	}

	var reader io.Reader = resp.Body
	var bar *pterm.ProgressbarPrinter
	if resp.ContentLength > 0 {
		bar, _ = pterm.DefaultProgressbar.
			WithTotal(int(resp.ContentLength)).
			WithTitle("Downloading").
			WithShowCount(false).
			Start()
		reader = &progressReader{r: resp.Body, bar: bar}
	}

	_, copyErr := io.Copy(out, reader)
	if bar != nil {
		_, _ = bar.Stop()
	}
	if closeErr := out.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(dest)
		return errors.Wrapf(copyErr, errors.ErrNetwork, "download of %s was interrupted", url)
	}
	return nil
}

type progressReader struct {
	r   io.Reader
	bar *pterm.ProgressbarPrinter
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.bar.Add(n)
	}
	return n, err
}
