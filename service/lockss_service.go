// Package service wraps the LOCKSS daemon web services in one typed
// method per capability. Every method is independent: a failure in
// one says nothing about the others, and nothing is cached between
// calls.
package service

import (
	"context"
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/op/go-logging"
	"github.com/sfu-dhil/lockssomatic"
	"github.com/sfu-dhil/lockssomatic/constants"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/network"
	"github.com/warpfork/go-errcat"
)

// hashLine matches a line of a V3 block hash file: the hex digest,
// whitespace, then the URL that was hashed.
var hashLine = regexp.MustCompile(`(?m)^([0-9a-fA-F]+)\s+http`)

type LockssService struct {
	client *network.BoxClient
	logger *logging.Logger
}

func NewLockssService(client *network.BoxClient, logger *logging.Logger) *LockssService {
	return &LockssService{
		client: client,
		logger: logger,
	}
}

// Client returns the underlying box client.
func (service *LockssService) Client() *network.BoxClient {
	return service.client
}

// IsDaemonReady returns true if the box's daemon has finished
// starting up.
func (service *LockssService) IsDaemonReady(ctx context.Context, box *models.Box) (bool, error) {
	return service.client.IsDaemonReady(ctx, box)
}

// AuStatus returns the box's report on au.
func (service *LockssService) AuStatus(ctx context.Context, box *models.Box, au *models.Au) (*models.AuStatusResult, error) {
	response, err := service.client.Call(ctx, box, constants.DaemonStatusService,
		"getAuStatus", network.Param("auId", au.LockssAuid()))
	if err != nil {
		return nil, err
	}
	result := &models.AuStatusResult{}
	if err := response.Decode(result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListAus returns the id and name of every AU the box preserves.
func (service *LockssService) ListAus(ctx context.Context, box *models.Box) ([]*models.AuSummary, error) {
	response, err := service.client.Call(ctx, box, constants.DaemonStatusService, "getAuIds")
	if err != nil {
		return nil, err
	}
	summaries := make([]*models.AuSummary, 0, len(response.Returns))
	if err := response.DecodeList(&summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// ListAuUrls returns the URLs the box holds for au.
func (service *LockssService) ListAuUrls(ctx context.Context, box *models.Box, au *models.Au) ([]string, error) {
	response, err := service.client.Call(ctx, box, constants.DaemonStatusService,
		"getAuUrls", network.Param("auId", au.LockssAuid()))
	if err != nil {
		return nil, err
	}
	return response.Strings()
}

// IsUrlCached returns true if the box has a copy of the deposit in au.
func (service *LockssService) IsUrlCached(ctx context.Context, box *models.Box, au *models.Au, deposit *models.Deposit) (bool, error) {
	response, err := service.client.Call(ctx, box, constants.ContentService, "isUrlCached",
		network.Param("url", deposit.Url), network.Param("auId", au.LockssAuid()))
	if err != nil {
		return false, err
	}
	return response.Bool()
}

// Hash asks the box to hash its copy of deposit with the deposit's
// checksum algorithm and returns the hex digest. It returns an empty
// string with no error if the box answered but its block file has no
// hash for the deposit. A hasher error message is an ErrRemoteFault.
func (service *LockssService) Hash(ctx context.Context, box *models.Box, au *models.Au, deposit *models.Deposit) (string, error) {
	algorithm, ok := constants.LockssAlgorithmNames[constants.NormalizeAlgorithm(deposit.ChecksumType)]
	if !ok {
		return "", errcat.Errorf(lockssomatic.ErrConfig,
			"Deposit %s has unsupported checksum type '%s'", deposit.Uuid, deposit.ChecksumType)
	}
	params := &models.HasherParams{
		AuId:               au.LockssAuid(),
		Url:                deposit.Url,
		HashType:           constants.HashTypeV3File,
		Algorithm:          algorithm,
		RecordFilterStream: false,
	}
	response, err := service.client.Call(ctx, box, constants.HasherService,
		"hash", network.Param("hasherParams", params))
	if err != nil {
		return "", err
	}
	result := &models.HasherResult{}
	if err := response.Decode(result); err != nil {
		return "", err
	}
	if result.ErrorMessage != "" {
		return "", errcat.Errorf(lockssomatic.ErrRemoteFault,
			"Hasher on %s: %s", box.HostPort(), result.ErrorMessage)
	}
	hash := FindBlockHash(result.BlockFile)
	if hash == "" {
		service.logger.Debugf("Block file from %s has no hash for %s", box.HostPort(), deposit.Url)
	}
	return hash, nil
}

// FindBlockHash returns the first digest in a V3 block hash file,
// which may be plain text or base64 encoded. It returns an empty
// string if there is none.
func FindBlockHash(blockFile string) string {
	if match := hashLine.FindStringSubmatch(blockFile); match != nil {
		return match[1]
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(blockFile))
	if err != nil {
		return ""
	}
	if match := hashLine.FindStringSubmatch(string(decoded)); match != nil {
		return match[1]
	}
	return ""
}

// BoxStatus returns the box's repository spaces and their usage.
func (service *LockssService) BoxStatus(ctx context.Context, box *models.Box) ([]*models.RepositorySpace, error) {
	response, err := service.client.Call(ctx, box, constants.DaemonStatusService,
		"queryRepositorySpaces", network.Param("repositorySpaceQuery", constants.QueryAll))
	if err != nil {
		return nil, err
	}
	spaces := make([]*models.RepositorySpace, 0, len(response.Returns))
	if err := response.DecodeList(&spaces); err != nil {
		return nil, err
	}
	return spaces, nil
}

// PlatformStatus returns the daemon's identity and version info.
func (service *LockssService) PlatformStatus(ctx context.Context, box *models.Box) (*models.PlatformStatus, error) {
	response, err := service.client.Call(ctx, box, constants.DaemonStatusService, "getPlatformConfiguration")
	if err != nil {
		return nil, err
	}
	platform := &models.PlatformStatus{}
	if err := response.Decode(platform); err != nil {
		return nil, err
	}
	return platform, nil
}

// QueryPolls returns the polls the box is calling.
func (service *LockssService) QueryPolls(ctx context.Context, box *models.Box) ([]*models.PollStatus, error) {
	response, err := service.client.Call(ctx, box, constants.DaemonStatusService,
		"queryPolls", network.Param("pollQuery", constants.QueryAll))
	if err != nil {
		return nil, err
	}
	polls := make([]*models.PollStatus, 0, len(response.Returns))
	if err := response.DecodeList(&polls); err != nil {
		return nil, err
	}
	return polls, nil
}

// QueryVotes returns the polls the box is voting in.
func (service *LockssService) QueryVotes(ctx context.Context, box *models.Box) ([]*models.VoteStatus, error) {
	response, err := service.client.Call(ctx, box, constants.DaemonStatusService,
		"queryVotes", network.Param("voteQuery", constants.QueryAll))
	if err != nil {
		return nil, err
	}
	votes := make([]*models.VoteStatus, 0, len(response.Returns))
	if err := response.DecodeList(&votes); err != nil {
		return nil, err
	}
	return votes, nil
}
