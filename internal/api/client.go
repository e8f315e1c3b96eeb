// Package api is the request/response client for the collaboration backend:
// team members, comments, versions, approvals, share links and the activity
// log. It carries no client-side persistence; every call returns the server's
// answer and a *RequestError on failure.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/devTechs001/e-commerce-folio-sub002/internal/model"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

func NewClient(baseURL, authToken string) *Client {
	return &Client{
		baseURL:    baseURL,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// NewClientWithHTTP injects the underlying HTTP client, used by tests.
func NewClientWithHTTP(baseURL, authToken string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, authToken: authToken, httpClient: httpClient}
}

func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Code == "" {
		body.Code = "REQUEST_FAILED"
	}
	if body.Error == "" {
		body.Error = resp.Status
	}
	return &RequestError{Status: resp.StatusCode, Code: body.Code, Message: body.Error}
}

func portfolioPath(documentID, suffix string) string {
	return "/portfolios/" + url.PathEscape(documentID) + suffix
}

// --- team members ---

func (c *Client) ListTeamMembers(ctx context.Context, documentID string) ([]model.TeamMember, error) {
	var out struct {
		Members []model.TeamMember `json:"members"`
	}
	if err := c.do(ctx, http.MethodGet, portfolioPath(documentID, "/team"), nil, &out); err != nil {
		return nil, err
	}
	return out.Members, nil
}

func (c *Client) InviteTeamMember(ctx context.Context, documentID, email, role string) (model.TeamMember, error) {
	body := map[string]string{"email": email, "role": role}
	var out model.TeamMember
	if err := c.do(ctx, http.MethodPost, portfolioPath(documentID, "/team/invite"), body, &out); err != nil {
		return model.TeamMember{}, err
	}
	return out, nil
}

func (c *Client) UpdateMemberRole(ctx context.Context, documentID, memberID, role string) (model.TeamMember, error) {
	body := map[string]string{"role": role}
	var out model.TeamMember
	path := portfolioPath(documentID, "/team/"+url.PathEscape(memberID)+"/role")
	if err := c.do(ctx, http.MethodPut, path, body, &out); err != nil {
		return model.TeamMember{}, err
	}
	return out, nil
}

func (c *Client) RemoveTeamMember(ctx context.Context, documentID, memberID string) error {
	return c.do(ctx, http.MethodDelete, portfolioPath(documentID, "/team/"+url.PathEscape(memberID)), nil, nil)
}

// --- comments ---

func (c *Client) ListComments(ctx context.Context, documentID string) ([]model.Comment, error) {
	var out struct {
		Comments []model.Comment `json:"comments"`
	}
	if err := c.do(ctx, http.MethodGet, portfolioPath(documentID, "/comments"), nil, &out); err != nil {
		return nil, err
	}
	return out.Comments, nil
}

// AddComment submits a comment. The response carries only the assigned ID:
// the comment itself reaches the store via the comment_added event.
func (c *Client) AddComment(ctx context.Context, documentID, sectionID, body string) (string, error) {
	payload := map[string]string{"sectionId": sectionID, "body": body}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, portfolioPath(documentID, "/comments"), payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// ResolveComment requests resolution; the state change arrives as a
// comment_resolved event.
func (c *Client) ResolveComment(ctx context.Context, documentID, commentID string) error {
	path := portfolioPath(documentID, "/comments/"+url.PathEscape(commentID)+"/resolve")
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) DeleteComment(ctx context.Context, documentID, commentID string) error {
	return c.do(ctx, http.MethodDelete, portfolioPath(documentID, "/comments/"+url.PathEscape(commentID)), nil, nil)
}

// --- versions ---

func (c *Client) ListVersions(ctx context.Context, documentID string) ([]model.VersionSnapshot, error) {
	var out struct {
		Versions []model.VersionSnapshot `json:"versions"`
	}
	if err := c.do(ctx, http.MethodGet, portfolioPath(documentID, "/versions"), nil, &out); err != nil {
		return nil, err
	}
	return out.Versions, nil
}

// CreateVersion returns the new snapshot from the response itself; version
// creation is not pushed live to other collaborators.
func (c *Client) CreateVersion(ctx context.Context, documentID, description string) (model.VersionSnapshot, error) {
	body := map[string]string{"description": description}
	var out model.VersionSnapshot
	if err := c.do(ctx, http.MethodPost, portfolioPath(documentID, "/versions"), body, &out); err != nil {
		return model.VersionSnapshot{}, err
	}
	return out, nil
}

// RestoreVersion creates and returns a new snapshot holding the restored
// content; the target snapshot itself is never mutated.
func (c *Client) RestoreVersion(ctx context.Context, documentID string, versionID int) (model.VersionSnapshot, error) {
	path := portfolioPath(documentID, "/versions/"+strconv.Itoa(versionID)+"/restore")
	var out model.VersionSnapshot
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return model.VersionSnapshot{}, err
	}
	return out, nil
}

type VersionDiff struct {
	From   int               `json:"from"`
	To     int               `json:"to"`
	Fields []model.FieldDiff `json:"fields"`
}

func (c *Client) CompareVersions(ctx context.Context, documentID string, from, to int) (VersionDiff, error) {
	path := portfolioPath(documentID, "/versions/compare") +
		"?from=" + strconv.Itoa(from) + "&to=" + strconv.Itoa(to)
	var out VersionDiff
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return VersionDiff{}, err
	}
	return out, nil
}

// --- approvals ---

func (c *Client) ListApprovals(ctx context.Context, documentID string) ([]model.ApprovalRequest, error) {
	var out struct {
		Approvals []model.ApprovalRequest `json:"approvals"`
	}
	if err := c.do(ctx, http.MethodGet, portfolioPath(documentID, "/approvals"), nil, &out); err != nil {
		return nil, err
	}
	return out.Approvals, nil
}

func (c *Client) RequestApproval(ctx context.Context, documentID, sectionID, message string) (model.ApprovalRequest, error) {
	body := map[string]string{"sectionId": sectionID, "message": message}
	var out model.ApprovalRequest
	if err := c.do(ctx, http.MethodPost, portfolioPath(documentID, "/approvals"), body, &out); err != nil {
		return model.ApprovalRequest{}, err
	}
	return out, nil
}

func (c *Client) ApproveChange(ctx context.Context, documentID, approvalID, comments string) (model.ApprovalRequest, error) {
	body := map[string]string{"comments": comments}
	path := portfolioPath(documentID, "/approvals/"+url.PathEscape(approvalID)+"/approve")
	var out model.ApprovalRequest
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return model.ApprovalRequest{}, err
	}
	return out, nil
}

func (c *Client) RejectChange(ctx context.Context, documentID, approvalID, reason string) (model.ApprovalRequest, error) {
	body := map[string]string{"reason": reason}
	path := portfolioPath(documentID, "/approvals/"+url.PathEscape(approvalID)+"/reject")
	var out model.ApprovalRequest
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return model.ApprovalRequest{}, err
	}
	return out, nil
}

// --- share links ---

func (c *Client) CreateShareLink(ctx context.Context, documentID, role string) (model.ShareLink, error) {
	body := map[string]string{"role": role}
	var out model.ShareLink
	if err := c.do(ctx, http.MethodPost, portfolioPath(documentID, "/share-links"), body, &out); err != nil {
		return model.ShareLink{}, err
	}
	return out, nil
}

func (c *Client) ListShareLinks(ctx context.Context, documentID string) ([]model.ShareLink, error) {
	var out struct {
		Links []model.ShareLink `json:"links"`
	}
	if err := c.do(ctx, http.MethodGet, portfolioPath(documentID, "/share-links"), nil, &out); err != nil {
		return nil, err
	}
	return out.Links, nil
}

func (c *Client) UpdateShareLink(ctx context.Context, documentID, linkID, role string) (model.ShareLink, error) {
	body := map[string]string{"role": role}
	path := portfolioPath(documentID, "/share-links/"+url.PathEscape(linkID))
	var out model.ShareLink
	if err := c.do(ctx, http.MethodPut, path, body, &out); err != nil {
		return model.ShareLink{}, err
	}
	return out, nil
}

func (c *Client) RevokeShareLink(ctx context.Context, documentID, linkID string) error {
	return c.do(ctx, http.MethodDelete, portfolioPath(documentID, "/share-links/"+url.PathEscape(linkID)), nil, nil)
}

// --- activity log ---

func (c *Client) ActivityLog(ctx context.Context, documentID string, limit int) ([]model.ActivityEntry, error) {
	path := portfolioPath(documentID, "/activity")
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Items []model.ActivityEntry `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// --- notifications ---

// UnreadNotificationCount fetches the server-authoritative unread count,
// re-fetched on every (re)connect.
func (c *Client) UnreadNotificationCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/notifications/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}
