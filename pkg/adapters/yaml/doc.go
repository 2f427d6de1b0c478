// Package yaml loads signal trees from YAML or JSON files.
//
// A document maps signal names to sequences. Each item either runs a
// registered action ("do"), groups items ("sequence"), or inlines another
// signal ("use"). Branches hang off an action under "paths", keyed by the
// output names the action declares:
//
//	signals:
//	  login:
//	    sequence:
//	      - do: http_post
//	        name: authenticate
//	        args: {path: login, into: session}
//	        paths:
//	          success:
//	            - do: set
//	              args: {key: logged_in, value: true}
//	          error:
//	            - do: fail
//	              args: {message: login failed}
//	      - do: log
//	        args: {message: login finished}
package yaml
