package vss

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"

	"github.com/robocurse/robocurse/internal/roboerr"
	"github.com/robocurse/robocurse/internal/state"
)

const remoteAgentPort = 9443

// UNCParts is a parsed UNC path (spec §4.5 create_remote step 1).
type UNCParts struct {
	Server   string
	Share    string
	Relative string
}

// ParseUNC splits a `\\server\share\relative\path` UNC path.
func ParseUNC(unc string) (UNCParts, error) {
	trimmed := strings.TrimPrefix(unc, `\\`)
	if trimmed == unc {
		return UNCParts{}, roboerr.New(roboerr.UnsafeInput, component, "not a UNC path: "+unc)
	}
	segments := strings.SplitN(trimmed, `\`, 3)
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return UNCParts{}, roboerr.New(roboerr.UnsafeInput, component, "malformed UNC path: "+unc)
	}
	rel := ""
	if len(segments) == 3 {
		rel = segments[2]
	}
	return UNCParts{Server: segments[0], Share: segments[1], Relative: rel}, nil
}

// RemoteClient talks to the management-API agent expected to be running
// on a remote Windows host, retrying transient failures with
// hashicorp/go-retryablehttp configured to the same "3 x 5s" policy used
// for local shadow-copy creation (SPEC_FULL.md §4.5 **[ADDED]**), so the
// HTTP retry policy and the VSS retry policy share one mechanism.
type RemoteClient struct {
	http *retryablehttp.Client
}

func NewRemoteClient() *RemoteClient {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 5 * time.Second
	c.RetryWaitMax = 5 * time.Second
	c.Logger = nil
	return &RemoteClient{http: c}
}

func (c *RemoteClient) do(ctx context.Context, method, server, path string, cred *state.Credential, body, out interface{}) error {
	hostport := server
	if !strings.Contains(server, ":") {
		hostport = fmt.Sprintf("%s:%d", server, remoteAgentPort)
	}
	url := fmt.Sprintf("https://%s/api/v1%s", hostport, path)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return roboerr.Wrap(roboerr.ConfigurationInvalid, component, "cannot encode management API request", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return roboerr.Wrap(roboerr.VssPermanent, component, "cannot build management API request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cred != nil && cred.Username != "" {
		req.SetBasicAuth(cred.Domain+`\`+cred.Username, cred.Password)
	} else {
		return roboerr.New(roboerr.UncRequiresCredential, component, "remote VSS management call requires an explicit credential in a non-interactive session")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return roboerr.Wrap(classify(err.Error()), component, "management API call failed: "+path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return roboerr.New(classify(string(data)), component, fmt.Sprintf("management API returned %d for %s: %s", resp.StatusCode, path, string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return roboerr.Wrap(roboerr.VssPermanent, component, "cannot decode management API response", err)
		}
	}
	return nil
}

// Ping checks that the remote management-API agent is reachable,
// without requiring a credential: any HTTP response (even an
// authentication failure) proves the agent is listening, which is what
// `--test-remote` is checking before an operator wires up real
// credentials in a profile.
func (c *RemoteClient) Ping(ctx context.Context, server string) error {
	hostport := server
	if !strings.Contains(server, ":") {
		hostport = fmt.Sprintf("%s:%d", server, remoteAgentPort)
	}
	url := fmt.Sprintf("https://%s/api/v1/health", hostport)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return roboerr.Wrap(roboerr.VssPermanent, component, "cannot build connectivity check request", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return roboerr.Wrap(classify(err.Error()), component, "remote management agent unreachable: "+server, err)
	}
	resp.Body.Close()
	return nil
}

type resolveShareResponse struct {
	LocalPath string `json:"local_path"`
}

// ResolveShare asks the remote agent for a share's local filesystem path
// (spec §4.5 create_remote step 3).
func (c *RemoteClient) ResolveShare(ctx context.Context, server, share string, cred *state.Credential) (string, error) {
	var resp resolveShareResponse
	err := c.do(ctx, http.MethodGet, server, "/shares/"+share, cred, nil, &resp)
	if err != nil {
		return "", err
	}
	if resp.LocalPath == "" {
		return "", roboerr.New(roboerr.VssPermanent, component, "share not found on remote host: "+share)
	}
	return resp.LocalPath, nil
}

type createShadowCopyRequest struct {
	Volume string `json:"volume"`
}

type createShadowCopyResponse struct {
	ShadowId   string `json:"shadow_id"`
	ShadowPath string `json:"shadow_path"`
}

// CreateShadowCopy invokes shadow-copy creation on the remote server's
// volume underlying shareLocalPath (spec §4.5 create_remote step 4).
func (c *RemoteClient) CreateShadowCopy(ctx context.Context, server, volume string, cred *state.Credential) (shadowID, shadowPath string, err error) {
	var resp createShadowCopyResponse
	err = c.do(ctx, http.MethodPost, server, "/shadow-copies", cred, createShadowCopyRequest{Volume: volume}, &resp)
	if err != nil {
		return "", "", err
	}
	return resp.ShadowId, resp.ShadowPath, nil
}

// DeleteShadowCopy removes a previously created remote shadow copy.
func (c *RemoteClient) DeleteShadowCopy(ctx context.Context, server, shadowID string, cred *state.Credential) error {
	return c.do(ctx, http.MethodDelete, server, "/shadow-copies/"+shadowID, cred, nil, nil)
}

type createJunctionRequest struct {
	TargetPath string `json:"target_path"`
	LinkPath   string `json:"link_path"`
}

// CreateRemoteJunction issues the remote-command call that creates a
// junction inside the share directory on the server (spec §4.5
// "Exposing the snapshot... Remote").
func (c *RemoteClient) CreateRemoteJunction(ctx context.Context, server, targetPath, linkPath string, cred *state.Credential) error {
	return c.do(ctx, http.MethodPost, server, "/junctions", cred, createJunctionRequest{TargetPath: targetPath, LinkPath: linkPath}, nil)
}

// RemoveRemoteJunction removes a previously created remote junction.
func (c *RemoteClient) RemoveRemoteJunction(ctx context.Context, server, linkPath string, cred *state.Credential) error {
	return c.do(ctx, http.MethodDelete, server, "/junctions?path="+linkPath, cred, nil, nil)
}

// CreateRemote creates a shadow copy of the volume backing a UNC path's
// share on the remote server (spec §4.5 create_remote).
func (m *Manager) CreateRemote(ctx context.Context, uncPath string, cred *state.Credential) (*state.SnapshotRecord, error) {
	parts, err := ParseUNC(uncPath)
	if err != nil {
		return nil, err
	}

	localPath, err := m.HTTP.ResolveShare(ctx, parts.Server, parts.Share, cred)
	if err != nil {
		return nil, err
	}
	volume, err := driveLetterVolume(localPath)
	if err != nil {
		return nil, err
	}

	var rec *state.SnapshotRecord
	err = Retry(m.Policy, func(attempt int) error {
		shadowID, shadowPath, createErr := m.HTTP.CreateShadowCopy(ctx, parts.Server, volume, cred)
		if createErr != nil {
			return createErr
		}
		rec = &state.SnapshotRecord{
			ShadowId:       shadowID,
			SourceVolume:   volume,
			ShadowPath:     shadowPath,
			CreatedAt:      time.Now(),
			IsRemote:       true,
			ServerName:     parts.Server,
			ShareName:      parts.Share,
			ShareLocalPath: localPath,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := m.Registry.Add(rec); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"component": component, "server": parts.Server, "share": parts.Share}).
		Info("remote shadow copy created")
	return rec, nil
}
