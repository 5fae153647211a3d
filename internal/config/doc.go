// Package config provides configuration parsing for blueprint projects.
//
// The configuration is stored in blueprint.json at the project root.
// This package handles loading, saving, and validating configuration.
//
// # Configuration File Structure
//
//	{
//	  "name": "@acme/web-blueprint",
//	  "version": "1.2.0",
//	  "outdir": ".",
//	  "assets": "static-assets",
//	  "repositories": [
//	    {
//	      "title": "web app",
//	      "assets": [{"from": "web/**", "to": "public", "template": true}],
//	      "substitute": {"AppName": "Acme"},
//	      "strategies": [
//	        {
//	          "identifier": "never_update_assets",
//	          "strategy": "neverUpdate",
//	          "globs": ["public/**"]
//	        }
//	      ]
//	    }
//	  ],
//	  "resynthesis": {"strict": false, "dotfiles": true},
//	  "ancestors": {"driver": "s3", "bucket": "blueprints", "prefix": "ancestors/"},
//	  "diffs": {"enabled": true, "originBranch": "main"},
//	  "concurrency": 4,
//	  "logLevel": "info",
//	  "serve": {"addr": "localhost:9464"}
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Repositories:", len(cfg.Repositories))
package config
