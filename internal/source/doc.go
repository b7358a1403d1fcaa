// Package source stores device-control credentials ("sources").
//
// Each source is a labelled bearer token that can be enabled or disabled
// independently, so one deployment can drive devices across several
// accounts. Tokens are sealed with the vault before they touch disk and
// are only decrypted by Store methods.
//
// The sources file is shared by every source kind:
//
//	{
//	  "smartthings": {
//	    "entries": [
//	      {"id": "...", "label": "Home", "enabled": true,
//	       "encryptedToken": "<base64>", "updatedAt": "2026-01-02T15:04:05Z"}
//	    ]
//	  }
//	}
//
// Every mutation rewrites the whole file atomically. Entries are never
// deleted; disable them instead.
package source
