package providercreds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsEmptyData(t *testing.T) {
	_, err := New(nil, OAuth2, nil)
	assert.Error(t, err)
}

func TestNew_RejectsEmptyType(t *testing.T) {
	_, err := New([]byte("x"), "", nil)
	assert.Error(t, err)
}

func TestIsExpired_NoExpiry(t *testing.T) {
	c, err := New([]byte("blob"), APIKey, nil)
	require.NoError(t, err)
	assert.False(t, c.IsExpired(time.Now()))
}

func TestIsExpired_PastExpiry(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	c, err := New([]byte("blob"), OAuth2, &past)
	require.NoError(t, err)
	assert.True(t, c.IsExpired(time.Now()))
}

func TestIsExpiringSoon(t *testing.T) {
	soon := time.Now().Add(2 * time.Minute)
	c, err := New([]byte("blob"), OAuth2, &soon)
	require.NoError(t, err)
	assert.True(t, c.IsExpiringSoon(time.Now(), 5*time.Minute))
	assert.False(t, c.IsExpiringSoon(time.Now(), time.Minute))
}

func TestTimeUntilExpiry_Nil(t *testing.T) {
	c, err := New([]byte("blob"), APIKey, nil)
	require.NoError(t, err)
	assert.Nil(t, c.TimeUntilExpiry(time.Now()))
}

func TestTimeUntilExpiry_AlreadyExpiredIsZero(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	c, err := New([]byte("blob"), OAuth2, &past)
	require.NoError(t, err)
	remaining := c.TimeUntilExpiry(time.Now())
	require.NotNil(t, remaining)
	assert.Equal(t, time.Duration(0), *remaining)
}

func TestSupportsRefresh(t *testing.T) {
	oauth, _ := New([]byte("b"), OAuth2, nil)
	link, _ := New([]byte("b"), LinkToken, nil)
	apiKey, _ := New([]byte("b"), APIKey, nil)
	cert, _ := New([]byte("b"), Certificate, nil)

	assert.True(t, oauth.SupportsRefresh())
	assert.True(t, link.SupportsRefresh())
	assert.False(t, apiKey.SupportsRefresh())
	assert.False(t, cert.SupportsRefresh())
}
