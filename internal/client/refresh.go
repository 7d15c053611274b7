package client

import (
	"context"

	"github.com/raine/authclient/internal/credential"
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Data credential.Credential `json:"data"`
}

// Refresh calls the refresh endpoint. It is used by the coordinator and does
// not itself go through 401 handling.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (credential.Credential, error) {
	result := &refreshResponse{}

	res, err := c.refreshClient.
		NewRequest().
		SetContext(ctx).
		SetBody(refreshRequest{RefreshToken: refreshToken}).
		SetResult(result).
		Post(c.refreshPath)
	if err != nil {
		return credential.Credential{}, &RefreshRejectedError{Err: err}
	}
	if !res.IsSuccess() {
		return credential.Credential{}, &RefreshRejectedError{StatusCode: res.StatusCode()}
	}
	if !result.Data.Complete() {
		return credential.Credential{}, &RefreshRejectedError{StatusCode: res.StatusCode(), Err: errIncompleteRefresh}
	}

	return result.Data, nil
}
