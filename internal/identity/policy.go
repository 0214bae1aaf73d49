package identity

import "encoding/json"

const policyVersion = "2012-10-17"

// PolicyDocument is an IAM policy in its JSON wire shape.
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement is one Allow/Deny entry of a policy.
type Statement struct {
	Sid       string                       `json:"Sid,omitempty"`
	Effect    string                       `json:"Effect"`
	Action    []string                     `json:"Action"`
	Resource  []string                     `json:"Resource"`
	Condition map[string]map[string]string `json:"Condition,omitempty"`
}

// JSON renders the document for PutUserPolicy.
func (d PolicyDocument) JSON() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// BucketName is the single bucket a principal may use.
func BucketName(prefix, principal string) string {
	return prefix + principal
}

// StoragePolicyName names the inline S3 policy of principal.
func StoragePolicyName(principal string) string {
	return principal + "-S3-OwnBucketAccess"
}

// ComputePolicyName names the inline EC2 policy of principal.
func ComputePolicyName(principal string) string {
	return principal + "-EC2-TaggedInstanceAccess"
}

// StoragePolicy grants full object access to bucket and nothing else,
// apart from listing bucket names.
func StoragePolicy(bucket string) PolicyDocument {
	return PolicyDocument{
		Version: policyVersion,
		Statement: []Statement{
			{
				Sid:    "OwnBucketAccess",
				Effect: "Allow",
				Action: []string{"s3:*"},
				Resource: []string{
					"arn:aws:s3:::" + bucket,
					"arn:aws:s3:::" + bucket + "/*",
				},
			},
			{
				Sid:      "ListBucketNames",
				Effect:   "Allow",
				Action:   []string{"s3:ListAllMyBuckets"},
				Resource: []string{"*"},
			},
		},
	}
}

// launchResources are the non-instance resources RunInstances touches.
// They carry no request tags, so they are granted without a condition.
var launchResources = []string{
	"arn:aws:ec2:*::image/*",
	"arn:aws:ec2:*:*:subnet/*",
	"arn:aws:ec2:*:*:security-group/*",
	"arn:aws:ec2:*:*:network-interface/*",
	"arn:aws:ec2:*:*:volume/*",
	"arn:aws:ec2:*:*:key-pair/*",
}

const instanceARN = "arn:aws:ec2:*:*:instance/*"

// ComputePolicy restricts instance lifecycle actions to instances tagged
// Owner=principal, and only allows launching instances carrying that tag.
func ComputePolicy(principal string) PolicyDocument {
	return PolicyDocument{
		Version: policyVersion,
		Statement: []Statement{
			{
				Sid:    "TaggedInstanceAccess",
				Effect: "Allow",
				Action: []string{
					"ec2:StartInstances",
					"ec2:StopInstances",
					"ec2:TerminateInstances",
					"ec2:RebootInstances",
				},
				Resource: []string{instanceARN},
				Condition: map[string]map[string]string{
					"StringEquals": {"ec2:ResourceTag/" + OwnerTagKey: principal},
				},
			},
			{
				// Describe calls do not support resource-level conditions.
				Sid:      "DescribeForWaiters",
				Effect:   "Allow",
				Action:   []string{"ec2:DescribeInstances", "ec2:DescribeInstanceStatus"},
				Resource: []string{"*"},
			},
			{
				Sid:      "LaunchOwnedInstances",
				Effect:   "Allow",
				Action:   []string{"ec2:RunInstances"},
				Resource: []string{instanceARN},
				Condition: map[string]map[string]string{
					"StringEquals": {"aws:RequestTag/" + OwnerTagKey: principal},
				},
			},
			{
				Sid:      "LaunchSupportingResources",
				Effect:   "Allow",
				Action:   []string{"ec2:RunInstances"},
				Resource: launchResources,
			},
			{
				Sid:      "TagOnLaunch",
				Effect:   "Allow",
				Action:   []string{"ec2:CreateTags"},
				Resource: []string{instanceARN, "arn:aws:ec2:*:*:volume/*"},
				Condition: map[string]map[string]string{
					"StringEquals": {"ec2:CreateAction": "RunInstances"},
				},
			},
		},
	}
}
