package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/revmarket/marketplace-engine/internal/config"
	"github.com/revmarket/marketplace-engine/internal/entity"
)

type Service interface {
	GetTokenMetadata(token entity.Token) (map[string]interface{}, error)
}

type service struct {
	client *retryablehttp.Client
}

func NewMetadataService(client *retryablehttp.Client) Service {
	return service{client}
}

func (s service) GetTokenMetadata(token entity.Token) (map[string]interface{}, error) {
	metadataUri, err := token.MetadataURI()
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(metadataUri, "ipfs://") {
		return s.getFromIpfs(metadataUri)
	}

	return s.get(metadataUri)
}

func (s service) getFromIpfs(metadataUri string) (map[string]interface{}, error) {
	cid := strings.TrimPrefix(metadataUri, "ipfs://")

	var lastErr error
	for _, host := range config.Get().IpfsHosts {
		md, err := s.get(fmt.Sprintf("%s/ipfs/%s", host, cid))
		if err == nil {
			return md, nil
		}
		lastErr = err
	}

	return nil, lastErr
}

func (s service) get(uri string) (map[string]interface{}, error) {
	resp, err := s.client.Get(uri)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, errors.New(resp.Status)
	}

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	if err != nil {
		return nil, err
	}

	var md map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &md); err != nil {
		return nil, err
	}

	return md, nil
}
