// Package profile persists the signed-in identity of this device: user id,
// access token and display name. Key material never goes here; see keystore.
package profile

import "context"

// Well-known keys.
const (
	KeyUserID      = "user_id"
	KeyAccessToken = "access_token"
	KeyDisplayName = "display_name"
)

type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]string, error)
}

// Profile is the typed view of the well-known keys.
type Profile struct {
	UserID      string
	AccessToken string
	DisplayName string
}

// Load reads the profile. Missing keys yield empty fields.
func Load(ctx context.Context, r Repository) (Profile, error) {
	all, err := r.List(ctx)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		UserID:      all[KeyUserID],
		AccessToken: all[KeyAccessToken],
		DisplayName: all[KeyDisplayName],
	}, nil
}

// Save writes the non-empty fields of p.
func Save(ctx context.Context, r Repository, p Profile) error {
	for k, v := range map[string]string{
		KeyUserID:      p.UserID,
		KeyAccessToken: p.AccessToken,
		KeyDisplayName: p.DisplayName,
	} {
		if v == "" {
			continue
		}
		if err := r.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes every well-known key.
func Clear(ctx context.Context, r Repository) error {
	for _, k := range []string{KeyUserID, KeyAccessToken, KeyDisplayName} {
		if err := r.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}
