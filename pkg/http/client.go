/*
Copyright © 2022 - 2024 SUSE LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package http

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/cavaliergopher/grab/v3"

	"github.com/rancher/lkboot/pkg/types"
)

type Client struct {
	client *grab.Client
}

var _ types.HTTPClient = (*Client)(nil)

func NewClient(timeout time.Duration) *Client {
	client := grab.NewClient()
	client.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{client: client}
}

// IsURL reports whether src should be downloaded instead of read from disk
func IsURL(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// GetURL downloads the given URL to destination and returns the path of
// the downloaded file. A directory destination keeps the remote file name.
func (c Client) GetURL(ctx context.Context, log types.Logger, url string, destination string) (string, error) {
	req, err := grab.NewRequest(destination, url)
	if err != nil {
		log.Errorf("Failed creating a request to '%s'", url)
		return "", err
	}
	req = req.WithContext(ctx)

	log.Infof("Downloading %v...", req.URL())
	resp := c.client.Do(req)

	t := time.NewTicker(500 * time.Millisecond)
	defer t.Stop()

Loop:
	for {
		select {
		case <-t.C:
			log.Debugf("  transferred %v / %v bytes (%.2f%%)",
				resp.BytesComplete(),
				resp.Size(),
				100*resp.Progress())
		case <-resp.Done:
			break Loop
		}
	}

	if err := resp.Err(); err != nil {
		log.Errorf("Download failed: %v", err)
		return "", err
	}

	log.Debugf("Download saved to %v", resp.Filename)
	return resp.Filename, nil
}
